package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/Fickets/ticketflow/config"
	"github.com/Fickets/ticketflow/internal/client"
	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/service"
	"github.com/Fickets/ticketflow/internal/session"
	"github.com/Fickets/ticketflow/internal/transport"
	pkgLog "github.com/Fickets/ticketflow/pkg/logger"
)

var (
	eventID    = flag.String("event", "", "Event ID (required)")
	scheduleID = flag.Int64("schedule", 0, "Event schedule ID (required)")
	seatCount  = flag.Int("seats", 1, "Number of seats to auto-pick")
	seatIDs    = flag.String("seat-ids", "", "Comma-separated seat mapping IDs (overrides -seats)")
	facePath   = flag.String("face", "", "Path to the face image (required)")
	token      = flag.String("token", "", "Seed the credential store with this access token")
)

func main() {
	flag.Parse()

	if *eventID == "" || *scheduleID == 0 || *facePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	store, err := session.NewStore(
		cfg.Store.CredentialsPath,
		client.NewReissuer(cfg.API.BaseURL, cfg.API.RequestTimeout),
		l,
	)
	if err != nil {
		l.Fatalf(ctx, "Failed to open credential store: %v", err)
	}

	if *token != "" {
		if err := store.SetCredentials(&domain.Credentials{
			Actor:       domain.ActorUser,
			AccessToken: *token,
		}); err != nil {
			l.Fatalf(ctx, "Failed to store credentials: %v", err)
		}
	}

	if !store.Session(domain.ActorUser).IsLoggedIn {
		l.Fatalf(ctx, "No stored credentials; pass -token once to seed them")
	}

	face, err := os.ReadFile(*facePath)
	if err != nil {
		l.Fatalf(ctx, "Failed to read face image: %v", err)
	}

	ids, err := parseSeatIDs(*seatIDs)
	if err != nil {
		l.Fatalf(ctx, "Invalid -seat-ids: %v", err)
	}

	rest := transport.NewRest(cfg.API, domain.ActorUser, store, l)

	// Headless stand-in for the browser payment overlay: the gateway is
	// driven out-of-band, this side only reports the hand-off.
	widget := func(ctx context.Context, paymentID string, amount int64, description string) error {
		l.Infof(ctx, "payment widget invoked: payment_id=%s amount=%d desc=%q", paymentID, amount, description)
		return nil
	}

	flow := service.NewFlow(cfg, store, domain.ActorUser, rest, widget, l)

	res, err := flow.Run(ctx, service.FlowInput{
		EventID:    *eventID,
		ScheduleID: *scheduleID,
		SeatIDs:    ids,
		SeatCount:  *seatCount,
		Face: &domain.FaceArtifact{
			Image:      face,
			Filename:   *facePath,
			ScheduleID: *scheduleID,
		},
	})
	if err != nil {
		if res != nil && res.Revoked {
			l.Warnf(ctx, "Flow revoked by server: %s", res.Reason)
			os.Exit(2)
		}
		l.Fatalf(ctx, "Flow failed: %v", err)
	}

	l.Infof(ctx, "flow finished: state=%s order_id=%d payment_id=%s amount=%d",
		res.Payment.State, res.Payment.OrderID, res.Payment.PaymentID, res.Payment.Amount)

	if res.Payment.State != service.PaymentStatePaid {
		os.Exit(1)
	}
}

func parseSeatIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
