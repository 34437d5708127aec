package main

import (
	"flag"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"nifty-pivot-research/internal/config"
	"nifty-pivot-research/internal/kite"
	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/pkg/logger"
)

// Local one-shot login server for the Kite Connect browser flow. The
// redirect URL registered with the broker must be exactly
// http://127.0.0.1:5000/callback.
func main() {
	logger.Init()
	defer logger.Sync()

	configPath := flag.String("config", "config.yaml", "path to config file")
	addr := flag.String("addr", "127.0.0.1:5000", "listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	creds, err := config.LoadCredentials(cfg.Kite.EnvFile)
	if err != nil {
		logger.Fatal("load credentials", zap.Error(err))
	}
	if creds.APISecret == "" {
		logger.Fatal("KITE_API_SECRET missing", zap.String("env_file", cfg.Kite.EnvFile))
	}

	client := kite.New(creds.APIKey, models.ExchangeLocation())

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<h3>Kite Connect Login</h3>
<p>Redirect URL in the Kite app settings must be exactly:</p>
<pre>http://%s/callback</pre>
<a href=%q>Click here to login</a>`, *addr, client.LoginURL())
	})

	http.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		requestToken := r.URL.Query().Get("request_token")
		if requestToken == "" {
			http.Error(w, "no request_token in callback; check the redirect URL in the Kite app settings", http.StatusBadRequest)
			return
		}
		token, err := client.GenerateSession(requestToken, creds.APISecret, cfg.Kite.SessionFile)
		if err != nil {
			logger.Error("session exchange failed", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logger.Info("session saved", zap.String("path", cfg.Kite.SessionFile))
		fmt.Fprintf(w, `<h3>Login success</h3>
<p>Session saved to <b>%s</b></p>
<p><b>access_token</b>: %s</p>`, cfg.Kite.SessionFile, token)
	})

	logger.Info("login server listening", zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
