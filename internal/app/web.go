package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/desk_controller/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const webListenAddr = ":8080"

// RunWeb serves the latest desk height over HTTP: a JSON snapshot at
// /api/height, a live WebSocket feed at /ws, and static files from ./web.
func RunWeb() error {
	cfg := config.Get()
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is not configured")
	}

	var (
		mu         sync.RWMutex
		lastSample HeightSample
		haveSample bool
	)

	// 1) Connect to the broker and track the latest sample
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientIDPrefix + "-web-subscriber")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTT.Broker)

	topic := cfg.MQTT.TopicPrefix + "/height"
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s HeightSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: height unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastSample = s
		haveSample = true
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", topic)

	// 2) JSON API endpoint: latest height
	http.HandleFunc("/api/height", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveSample {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastSample); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 3) WebSocket feed: pushes the latest sample a few times a second
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(telemetryInterval)
		defer ticker.Stop()

		for range ticker.C {
			mu.RLock()
			sample, have := lastSample, haveSample
			mu.RUnlock()
			if !have {
				continue
			}
			if err := conn.WriteJSON(sample); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("web: websocket write error: %v", err)
				}
				return
			}
		}
	})

	// 4) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	log.Printf("web: server listening on %s", webListenAddr)
	return http.ListenAndServe(webListenAddr, nil)
}
