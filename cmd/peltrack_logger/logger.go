// Command peltrack_logger follows the peltrack status websocket and
// writes the tracked rotor position to InfluxDB.
package main

import (
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
)

type position struct {
	Az  float64 `json:"az"`
	El  float64 `json:"el"`
	Msg string  `json:"msg"`
}

func main() {
	server := os.Getenv("INFLUX_SERVER")
	if server == "" {
		server = "http://localhost:9999"
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Non-blocking write client
	writeApi := client.WriteApi("w1xm", "peltrack.position")
	defer writeApi.Close()
	go func() {
		for err := range writeApi.Errors() {
			log.Printf("write error: %v", err)
		}
	}()
	for {
		if err := logData(writeApi); err != nil {
			log.Print(err)
		}
		time.Sleep(1 * time.Second)
	}
}

func logData(writeApi api.WriteApi) error {
	url := os.Getenv("PELTRACK_ADDRESS")
	if url == "" {
		url = "ws://localhost:5000/api/ws"
	}
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var pos position
		if err := conn.ReadJSON(&pos); err != nil {
			return err
		}
		p := influxdb2.NewPoint("rotor.position",
			nil,
			map[string]interface{}{
				"azimuth":   pos.Az,
				"elevation": pos.El,
			},
			time.Now(),
		)
		writeApi.WritePoint(p)
	}
}
