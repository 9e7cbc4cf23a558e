package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/google/uuid"

	"github.com/Fickets/ticketflow/config"
	"github.com/Fickets/ticketflow/internal/checkin"
	"github.com/Fickets/ticketflow/internal/client"
	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/session"
	"github.com/Fickets/ticketflow/internal/transport"
	pkgLog "github.com/Fickets/ticketflow/pkg/logger"
)

var (
	eventID     = flag.String("event", "", "Event ID (required)")
	connectID   = flag.String("connect", "", "Gate connect ID (generated when empty)")
	framesDir   = flag.String("frames", "", "Directory of capture frames to feed the match pipeline (required)")
	autoConfirm = flag.Bool("auto-confirm", false, "Confirm entry automatically on every pushed match")
)

func main() {
	flag.Parse()

	if *eventID == "" || *framesDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *connectID == "" {
		*connectID = uuid.NewString()
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

	rest := transport.NewRest(cfg.API, domain.ActorAdmin, store, l)

	camera, err := newDirCamera(*framesDir)
	if err != nil {
		l.Fatalf(ctx, "Failed to read frames dir: %v", err)
	}

	capture := checkin.NewCaptureClient(camera, rest, *eventID, *connectID, cfg.Checkin.PollInterval, l)
	manager := checkin.NewManagerDisplay(cfg.Checkin.BrokerURL, *eventID, *connectID, rest, l)

	go func() {
		for upd := range manager.Updates() {
			if upd.Ready {
				l.Info(ctx, "gate ready for next person")
				continue
			}
			l.Infof(ctx, "match result: ticket=%d name=%s seats=%v similarity=%.2f",
				upd.Result.TicketID, upd.Result.Name, upd.Result.SeatLoc, upd.Result.Similarity)
			if *autoConfirm {
				if err := manager.Confirm(ctx, upd.Result.TicketID); err != nil {
					l.Errorf(ctx, "Confirm failed: %v", err)
				}
			}
		}
	}()

	terminal := checkin.NewTerminal(capture, manager, l)
	if err := terminal.Run(ctx); err != nil && ctx.Err() == nil {
		l.Fatalf(ctx, "Terminal stopped: %v", err)
	}
}

// dirCamera replays image files from a directory, one detected frame
// per file, then reports empty frames. Stands in for real capture
// hardware during bench runs.
type dirCamera struct {
	frames [][]byte
	next   int
}

func newDirCamera(dir string) (*dirCamera, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	cam := &dirCamera{}
	for _, path := range entries {
		img, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		cam.frames = append(cam.frames, img)
	}
	return cam, nil
}

func (c *dirCamera) Frame(ctx context.Context) ([]byte, bool, error) {
	if c.next >= len(c.frames) {
		return nil, false, nil
	}
	img := c.frames[c.next]
	c.next++
	return img, true, nil
}
