// cmd/kiteauth — one-time Kite Connect login.
//
// Default mode opens the system browser at the Kite login page, captures
// the redirect on KITE_REDIRECT_URI, exchanges the request token, and
// writes the session to the configured store. With -totp (and
// KITE_USER_ID / KITE_PASSWORD / KITE_TOTP_SECRET set) the login runs
// headless. With -token the browser is skipped and the given request
// token is exchanged directly.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"kitetrader/config"
	"kitetrader/internal/auth"
	"kitetrader/internal/session"
	"kitetrader/pkg/kiteconnect"
)

func main() {
	useTOTP := flag.Bool("totp", false, "Headless login using KITE_USER_ID/KITE_PASSWORD/KITE_TOTP_SECRET")
	reqToken := flag.String("token", "", "Exchange this request token directly (skip login)")
	timeout := flag.Duration("timeout", 5*time.Minute, "How long to wait for the browser login")
	flag.Parse()

	cfg := config.Load()

	var store session.Store
	switch cfg.SessionBackend {
	case "redis":
		rs, err := session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("[kiteauth] redis session store: %v", err)
		}
		defer rs.Close()
		store = rs
	default:
		fs, err := session.NewFileStore(cfg.SessionFile)
		if err != nil {
			log.Fatalf("[kiteauth] file session store: %v", err)
		}
		store = fs
	}

	kc := kiteconnect.New(kiteconnect.Config{APIKey: cfg.KiteAPIKey})
	flow := auth.NewFlow(auth.Config{
		Exchanger:   kc,
		Store:       store,
		APISecret:   cfg.KiteAPISecret,
		RedirectURI: cfg.RedirectURI,
		Timeout:     *timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+30*time.Second)
	defer cancel()

	var err error
	switch {
	case *reqToken != "":
		_, err = flow.Exchange(ctx, *reqToken)
	case *useTOTP:
		if !cfg.TOTPLoginEnabled() {
			log.Fatal("[kiteauth] -totp requires KITE_USER_ID, KITE_PASSWORD and KITE_TOTP_SECRET")
		}
		_, err = flow.LoginHeadless(ctx, auth.Credentials{
			UserID:     cfg.KiteUserID,
			Password:   cfg.KitePassword,
			TOTPSecret: cfg.KiteTOTPSecret,
		})
	default:
		_, err = flow.Login(ctx)
	}
	if err != nil {
		log.Fatalf("[kiteauth] login failed: %v", err)
	}

	// Sanity check: the saved token actually works.
	sess, err := store.Load()
	if err != nil {
		log.Fatalf("[kiteauth] reload session: %v", err)
	}
	kc.SetAccessToken(sess.AccessToken)
	profile, err := kc.Profile(ctx)
	if err != nil {
		log.Fatalf("[kiteauth] profile check failed: %v", err)
	}
	log.Printf("[kiteauth] logged in as %s (%s)", profile.UserName, profile.UserID)
}
