package main

import (
	"context"
	"flag"
	"log"
	"os"

	fx "github.com/robotalks/datalogger/pkg/framework"
	"github.com/robotalks/datalogger/pkg/publish/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/datalogger/"
	pattern = "#"
)

func init() {
	if val := os.Getenv("DATALOGGER_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&pattern, "topic", pattern, "Topic pattern relative to the prefix, e.g. +/dump.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub(pattern, mqtt.Handler(func(topic string, payload []byte) {
		p, err := mqtt.Decode(payload)
		if err != nil {
			log.Printf("%s: bad payload: %v", topic, err)
			return
		}
		out, err := mqtt.FormatJSON(p)
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, out)
	}))

	runner := fx.NewRunner(context.Background()).HandleSignals()
	runner.Go(fx.NamedRun("monitor", fx.RunFunc(func(ctx context.Context) error {
		token := q.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			return err
		}
		<-ctx.Done()
		return q.Close()
	})))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
