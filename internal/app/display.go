package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/desk_controller/internal/config"
)

const (
	displayI2CAddr       = 0x3C
	displayUpdatePeriod  = 200 * time.Millisecond
	displayStaleAfterSec = 10
)

// RunDisplay shows the desk height on a small SSD1306 OLED, fed from MQTT.
// Meant for a Pi mounted under the desk so the height is visible without a
// phone or terminal.
func RunDisplay() error {
	cfg := config.Get()
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is not configured")
	}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", displayI2CAddr)

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	var (
		mu         sync.RWMutex
		lastSample HeightSample
		lastSeen   time.Time
	)

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientIDPrefix + "-display-subscriber")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTT.Broker)

	topic := cfg.MQTT.TopicPrefix + "/height"
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s HeightSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("display: height unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastSample = s
		lastSeen = time.Now()
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", topic)

	// Display update loop
	ticker := time.NewTicker(displayUpdatePeriod)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		mu.RLock()
		sample, seen := lastSample, lastSeen
		mu.RUnlock()

		fresh := !seen.IsZero() && time.Since(seen) < displayStaleAfterSec*time.Second
		if err := updateHeightDisplay(dev, sample, fresh); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func newDisplayDrawer() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func updateHeightDisplay(dev *ssd1306.Dev, sample HeightSample, fresh bool) error {
	img, drawer := newDisplayDrawer()

	if !fresh {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Desk Height"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
	} else {
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte(fmt.Sprintf("H: %5.1f cm", sample.HeightCM)))

		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("T: %5.1f cm", sample.TargetCM)))

		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("E: %+5.1f cm", sample.ErrorCM)))

		status := sample.Status
		if len(status) > 18 {
			status = status[:18]
		}
		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(status))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img, drawer := newDisplayDrawer()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Desk Control"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("height"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
