// Standalone stub of the ticketing backend, enough to run cmd/flow
// end-to-end on a laptop: queue admission over WebSocket, seat map and
// locking, multipart order create, and the payment SSE push.
//
// Usage:
//
//	go run scripts/simulate-platform.go --addr :8080 --waiting 50
//	go run cmd/flow/main.go -event demo -schedule 1 -seats 2 -face face.jpg -token any
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	addr        = flag.String("addr", ":8080", "Listen address")
	waiting     = flag.Int("waiting", 50, "Initial queue waiting number")
	drainEvery  = flag.Duration("drain-every", 200*time.Millisecond, "Interval between queue position updates")
	payDelay    = flag.Duration("pay-delay", 2*time.Second, "Delay before the payment push fires")
	failPayment = flag.Bool("fail-payment", false, "Push FAILED instead of PAID")
	revokeAfter = flag.Duration("revoke-after", 0, "Push an ORDER_RIGHT_LOST revocation after this delay (0 = never)")
	lockTTL     = flag.Duration("lock-ttl", 7*time.Minute, "Server-side seat lock TTL")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type queueTicket struct {
	MyWaitingNumber    int64  `json:"myWaitingNumber"`
	TotalWaitingNumber int64  `json:"totalWaitingNumber"`
	QueueStatus        string `json:"queueStatus"`
}

type seat struct {
	SeatMappingID int64   `json:"seatMappingId"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Grade         string  `json:"grade"`
	Row           string  `json:"row"`
	Col           string  `json:"col"`
	Status        string  `json:"status"`
}

var (
	nextOrderID atomic.Int64
	sessions    atomic.Int64
)

func main() {
	flag.Parse()
	nextOrderID.Store(1000)

	mux := http.NewServeMux()
	mux.HandleFunc("/", route)

	fmt.Printf("🎫 Simulated ticketing platform on %s\n", *addr)
	fmt.Printf("   Queue: %d ahead, draining every %v\n", *waiting, *drainEvery)
	if *revokeAfter > 0 {
		fmt.Printf("   ⚠️  Revoking every session after %v\n", *revokeAfter)
	}
	if *failPayment {
		fmt.Printf("   💸 Payments will FAIL after %v\n", *payDelay)
	} else {
		fmt.Printf("   💰 Payments resolve PAID after %v\n", *payDelay)
	}

	if err := http.ListenAndServe(*addr, mux); err != nil {
		fmt.Printf("❌ Server stopped: %v\n", err)
		os.Exit(1)
	}
}

func route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/enter-queue"), strings.HasSuffix(path, "/leave-queue"):
		w.WriteHeader(http.StatusOK)

	case strings.HasSuffix(path, "/check"):
		// Everybody queues in the simulator.
		_, _ = w.Write([]byte("false"))

	case strings.Contains(path, "/events/event-simple/"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stageImg":         "https://example.com/stage.png",
			"posterUrl":        "https://example.com/poster.png",
			"reservationLimit": 4,
			"gradePriceList": []map[string]any{
				{"grade": "VIP", "price": 150000},
				{"grade": "R", "price": 110000},
			},
		})

	case strings.Contains(path, "/events/grades/seats/"):
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"grade": "VIP", "remainingCount": 20},
			{"grade": "R", "remainingCount": 80},
		})

	case strings.HasSuffix(path, "/seats"):
		_ = json.NewEncoder(w).Encode(seatMap())

	case strings.HasSuffix(path, "/seat/lock"):
		fmt.Printf("🔒 Seat lock granted (ttl %v)\n", *lockTTL)
		w.WriteHeader(http.StatusOK)

	case strings.HasSuffix(path, "/seat/unlock"):
		fmt.Println("🔓 Seat lock released")
		w.WriteHeader(http.StatusOK)

	case path == "/ticketing/order" && r.Method == http.MethodPost:
		handleOrderCreate(w, r)

	case strings.HasPrefix(path, "/ticketing/order/subscribe/"):
		handlePaymentStream(w, r)

	case strings.HasPrefix(path, "/ticketing/order/"):
		_ = json.NewEncoder(w).Encode(map[string]string{"orderStatus": "INPROGRESS"})

	case websocket.IsWebSocketUpgrade(r):
		handleSessionStream(w, r)

	default:
		fmt.Printf("❓ Unhandled %s %s\n", r.Method, path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func seatMap() []seat {
	seats := make([]seat, 0, 40)
	for i := 0; i < 40; i++ {
		grade := "R"
		if i < 10 {
			grade = "VIP"
		}
		seats = append(seats, seat{
			SeatMappingID: int64(100 + i),
			X:             float64(i % 10),
			Y:             float64(i / 10),
			Grade:         grade,
			Row:           string(rune('A' + i/10)),
			Col:           fmt.Sprintf("%d", i%10+1),
			Status:        "AVAILABLE",
		})
	}
	return seats
}

func handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	orderID := nextOrderID.Add(1)
	fmt.Printf("🧾 Order %d created (payload: %s)\n", orderID, r.FormValue("createOrderRequest"))
	_ = json.NewEncoder(w).Encode(map[string]int64{"orderId": orderID})
}

func handlePaymentStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	status := "PAID"
	if *failPayment {
		status = "FAILED"
	}

	select {
	case <-time.After(*payDelay):
		fmt.Printf("💳 Pushing payment result %s\n", status)
		_, _ = fmt.Fprintf(w, "event: payment\ndata: {\"status\":\"%s\"}\n\n", status)
		flusher.Flush()
	case <-r.Context().Done():
	}

	<-r.Context().Done()
}

// handleSessionStream serves both roles of the session channel: queue
// position updates until admission, then silence (or a revocation when
// --revoke-after is set).
func handleSessionStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id := uuid.New().String()[:8]
	n := sessions.Add(1)
	fmt.Printf("🔌 Session stream %s connected (#%d)\n", id, n)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var revoke <-chan time.Time
	if *revokeAfter > 0 {
		revoke = time.After(*revokeAfter)
	}

	remaining := int64(*waiting)
	total := int64(*waiting)
	ticker := time.NewTicker(*drainEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			fmt.Printf("🔌 Session stream %s closed by client\n", id)
			return

		case <-revoke:
			fmt.Printf("⛔ Revoking session %s\n", id)
			_ = conn.WriteJSON(map[string]string{
				"type":    "ORDER_RIGHT_LOST",
				"message": "payment window elapsed",
			})

		case <-ticker.C:
			if remaining < 0 {
				continue
			}
			var status string
			switch {
			case remaining == 0:
				status = "COMPLETED"
			case remaining <= total/10:
				status = "ALMOST_DONE"
			default:
				status = "IN_PROGRESS"
			}
			_ = conn.WriteJSON(queueTicket{
				MyWaitingNumber:    remaining,
				TotalWaitingNumber: total,
				QueueStatus:        status,
			})
			if remaining == 0 {
				fmt.Printf("✅ Session %s admitted\n", id)
			}
			remaining--
		}
	}
}
