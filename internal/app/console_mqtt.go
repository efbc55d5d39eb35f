package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/desk_controller/internal/config"
)

// RunConsoleMQTT prints desk height telemetry from the MQTT broker until
// interrupted. Useful for watching a move from another terminal or host.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientIDPrefix + "-console-subscriber")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTT.Broker)

	topic := cfg.MQTT.TopicPrefix + "/height"
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s HeightSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: height unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[HEIGHT] current=%5.1f cm  target=%5.1f cm  error=%+5.1f cm  status=%q\n",
			s.HeightCM, s.TargetCM, s.ErrorCM, s.Status,
		)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", topic)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	client.Disconnect(250)
	log.Println("console: disconnected")
	return nil
}
