package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	"deal-gateway/auth"
	"deal-gateway/dealapi"
	"deal-gateway/gateway"
	"deal-gateway/gateway/infra"
	"deal-gateway/pkg/logger"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "upstream",
		Usage:   "base URL of the deal API",
		Value:   "http://localhost:8081",
		EnvVars: []string{"UPSTREAM_URL"},
	},
	&cli.StringFlag{
		Name:    "quota-db",
		Usage:   "SQLite file holding the guest quota between runs",
		Value:   "guest-quota.db",
		EnvVars: []string{"QUOTA_SQLITE_PATH"},
	},
	&cli.StringFlag{
		Name:    "token",
		Usage:   "bearer token of a signed-in user (empty = guest)",
		EnvVars: []string{"DEAL_TOKEN"},
	},
	&cli.StringFlag{
		Name:    "secret",
		Usage:   "HS256 secret used to verify --token",
		EnvVars: []string{"AUTH_JWT_SECRET"},
	},
	&cli.DurationFlag{
		Name:    "timeout",
		Usage:   "upstream request timeout",
		Value:   10 * time.Second,
		EnvVars: []string{"FETCH_TIMEOUT"},
	},
	&cli.BoolFlag{
		Name:  "verbose",
		Usage: "debug logging",
	},
}

func run(args []string) error {
	app := cli.App{
		Name:  "dealctl",
		Usage: "query the deal API through the local request gateway",
		Flags: globalFlags,
	}
	app.Commands = []*cli.Command{
		cmdSearch,
		cmdDeal,
		cmdLink,
		cmdQuota,
		cmdToken,
	}
	return app.Run(args)
}

// session abre o gateway em processo; a cota de visitante fica no SQLite.
type session struct {
	client *dealapi.Client
	gw     *gateway.Gateway
	authed bool
	close  func()
}

func openSession(cctx *cli.Context) (*session, error) {
	lvl := "warn"
	if cctx.Bool("verbose") {
		lvl = "debug"
	}
	log := logger.NewWithLevel(lvl)

	kv, err := infra.OpenSQLiteKV(cctx.String("quota-db"))
	if err != nil {
		return nil, fmt.Errorf("open quota db: %w", err)
	}

	authed := false
	if tok := cctx.String("token"); tok != "" {
		if _, err := auth.NewVerifier(cctx.String("secret")).Parse(tok); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("invalid --token: %w", err)
		}
		authed = true
	}

	limits := gateway.DefaultLimits()
	limits.Timeout = cctx.Duration("timeout")
	gw := gateway.New(
		infra.NewHTTPTransport(infra.WithHTTPLogger(log)),
		gateway.WithLimits(limits),
		gateway.WithQuotaStore(kv),
		gateway.WithLogger(log),
	)
	return &session{
		client: dealapi.New(gw, cctx.String("upstream")),
		gw:     gw,
		authed: authed,
		close:  func() { _ = kv.Close() },
	}, nil
}

var cmdSearch = &cli.Command{
	Name:      "search",
	Usage:     "search deals (guests spend one of their daily searches)",
	ArgsUsage: "<query>",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "platform", Usage: "filter by platform (repeatable)"},
		&cli.Float64Flag{Name: "max-price"},
		&cli.IntFlag{Name: "page"},
		&cli.StringFlag{Name: "lang"},
	},
	Action: func(cctx *cli.Context) error {
		s, err := openSession(cctx)
		if err != nil {
			return err
		}
		defer s.close()

		res, err := s.client.Search(cctx.Context, s.authed, dealapi.SearchParams{
			Query:     strings.Join(cctx.Args().Slice(), " "),
			Platforms: cctx.StringSlice("platform"),
			MaxPrice:  cctx.Float64("max-price"),
			Page:      cctx.Int("page"),
			Lang:      cctx.String("lang"),
		})
		if errors.Is(err, dealapi.ErrQuotaExceeded) {
			return errors.New("daily guest search limit reached; sign in for unlimited searches")
		}
		if err != nil {
			return err
		}
		if err := printJSON(res.Data); err != nil {
			return err
		}
		if res.GuestRemaining >= 0 {
			fmt.Fprintf(os.Stderr, "guest searches left today: %d\n", res.GuestRemaining)
		}
		if res.LowRemaining {
			fmt.Fprintln(os.Stderr, "running low on free searches")
		}
		return nil
	},
}

var cmdDeal = &cli.Command{
	Name:      "deal",
	Usage:     "show one deal",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return errors.New("expected exactly one deal id")
		}
		s, err := openSession(cctx)
		if err != nil {
			return err
		}
		defer s.close()

		v, err := s.client.Deal(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		return printJSON(v)
	},
}

var cmdLink = &cli.Command{
	Name:      "link",
	Usage:     "generate the affiliate link of a deal",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return errors.New("expected exactly one deal id")
		}
		s, err := openSession(cctx)
		if err != nil {
			return err
		}
		defer s.close()

		v, err := s.client.GenerateLink(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		return printJSON(v)
	},
}

var cmdQuota = &cli.Command{
	Name:  "quota",
	Usage: "show today's guest quota",
	Action: func(cctx *cli.Context) error {
		s, err := openSession(cctx)
		if err != nil {
			return err
		}
		defer s.close()

		return printJSON(map[string]any{
			"status":  s.gw.QuotaStatus(cctx.Context, s.authed),
			"ceiling": s.gw.Limits().DailyCeiling,
		})
	},
}

var cmdToken = &cli.Command{
	Name:  "token",
	Usage: "sign a test token for a user (needs --secret)",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "user", Value: "dev"},
		&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
	},
	Action: func(cctx *cli.Context) error {
		tok, err := auth.NewVerifier(cctx.String("secret")).Sign(cctx.String("user"), cctx.Duration("ttl"))
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
