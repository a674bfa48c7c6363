// Command linkguard serves and issues signed single-use checkout links.
//
//	linkguard [serve]           run the HTTP service
//	linkguard issue <subject>   print a signed link for subject
//	linkguard keygen            print a random TOKEN_SECRET
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/linkguard/pkg/api"
	"github.com/dmitrymomot/linkguard/pkg/config"
	"github.com/dmitrymomot/linkguard/pkg/httpserver"
	"github.com/dmitrymomot/linkguard/pkg/logger"
	"github.com/dmitrymomot/linkguard/pkg/metrics"
	"github.com/dmitrymomot/linkguard/pkg/nonce"
	"github.com/dmitrymomot/linkguard/pkg/ratelimit"
	"github.com/dmitrymomot/linkguard/pkg/requestid"
	"github.com/dmitrymomot/linkguard/pkg/token"
)

// signingPurpose binds the derived HMAC key to checkout links, so the same
// TOKEN_SECRET can seed other keys without them being interchangeable.
const signingPurpose = "checkout-link"

const usage = `usage: linkguard [command]

commands:
  serve            run the HTTP service (default)
  issue <subject>  print a signed link for subject
  keygen           print a random secret for TOKEN_SECRET
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "linkguard:", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		if len(args) != 0 {
			return fmt.Errorf("%w: serve takes no arguments", errUsage)
		}
		cfg, err := config.Load[Config]()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)

	case "issue":
		if len(args) != 1 {
			return fmt.Errorf("%w: issue takes exactly one subject id", errUsage)
		}
		cfg, err := config.Load[Config]()
		if err != nil {
			return err
		}
		return issue(cfg, args[0], time.Now(), stdout)

	case "keygen":
		return keygen(rand.Reader, stdout)

	case "help", "-h", "--help":
		_, err := fmt.Fprint(stdout, usage)
		return err

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newSigner(cfg Config) (*token.Signer, error) {
	key, err := token.DerivedKey(cfg.TokenSecret, signingPurpose)
	if err != nil {
		return nil, err
	}
	return token.NewSigner(key)
}

func serve(ctx context.Context, cfg Config) error {
	log := newLogger(cfg, requestid.LoggerExtractor())
	logger.SetAsDefault(log)

	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	b, err := openBackends(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer b.Close()

	validator := token.NewValidator(signer,
		token.WithStore(m.InstrumentStore(b.nonces)),
		token.WithStoreTimeout(cfg.NonceStoreTimeout),
	)
	limiter, err := ratelimit.NewSlidingWindow(b.windows, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	if err != nil {
		return err
	}

	if b.purger != nil {
		go nonce.RunPurger(ctx, b.purger, cfg.NoncePurgeInterval, time.Now, log.With(logger.Component("nonce_purger")))
	}

	if cfg.IssuerAPIKey == "" {
		log.InfoContext(ctx, "ISSUER_API_KEY is empty, internal routes are disabled")
	}

	handler := api.New(api.Deps{
		Validator:  validator,
		Issuer:     token.NewIssuer(signer, token.WithLifetime(cfg.TokenLifetime)),
		Limiter:    limiter,
		Metrics:    m,
		Logger:     log,
		BaseURL:    cfg.PublicBaseURL,
		APIKey:     cfg.IssuerAPIKey,
		TrustProxy: cfg.TrustProxyHeaders,
		Checks:     b.checks,
	})

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, handler)
}

// issue prints a link for operators, bypassing the HTTP API.
func issue(cfg Config, subjectID string, now time.Time, w io.Writer) error {
	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}
	tok, err := token.NewIssuer(signer, token.WithLifetime(cfg.TokenLifetime)).Issue(subjectID, now)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, api.LinkURL(cfg.baseURL(), tok.String()))
	return err
}

func keygen(r io.Reader, w io.Writer) error {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(r, secret); err != nil {
		return fmt.Errorf("failed to read random bytes: %w", err)
	}
	_, err := fmt.Fprintln(w, base64.RawURLEncoding.EncodeToString(secret))
	return err
}
