// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// publisher is where readings go. mq implements it for a real broker.
type publisher interface {
	Publish(topic string, payload interface{}) error
}

// mq is a handle onto a MQTT broker connection.
type mq struct {
	conn   mqtt.Client
	qos    byte
	retain bool
}

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// newMQ connects to a broker and returns a new mq object. The connection is persistent, i.e.,
// re-establishes itself if there is a disconnect. The broker publishes "offline" to
// <prefix>/status if the daemon goes away without saying goodbye.
func newMQ(conf MqttConfig, log zerolog.Logger) (*mq, error) {
	id := conf.ClientID
	if id == "" {
		hostname, _ := os.Hostname()
		id = "thermomqtt-" + hostname
	}
	log.Debug().Str("client_id", id).Str("host", conf.Host).Int("port", conf.Port).
		Msg("Configuring MQTT")
	mqtt.ERROR = pahoLogger{log, zerolog.ErrorLevel}
	mqtt.CRITICAL = pahoLogger{log, zerolog.ErrorLevel}
	mqtt.WARN = pahoLogger{log, zerolog.WarnLevel}

	statusTopic := conf.Prefix + "/status"
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", conf.Host, conf.Port)).
		SetClientID(id).
		SetUsername(conf.User).
		SetPassword(conf.Password).
		SetAutoReconnect(true).
		SetWill(statusTopic, statusOffline, 1, true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info().Msg("MQTT connected")
		c.Publish(statusTopic, 1, true, statusOnline)
	})

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt: timeout connecting to %s:%d", conf.Host, conf.Port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	return &mq{conn: conn, qos: byte(conf.QoS), retain: conf.Retain}, nil
}

// Publish JSON encodes the payload and waits for the broker to accept it.
func (mq *mq) Publish(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := mq.conn.Publish(topic, mq.qos, mq.retain, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt: timeout publishing to %s", topic)
	}
	return token.Error()
}

// Close says goodbye on the status topic and disconnects.
func (mq *mq) Close(prefix string) {
	mq.conn.Publish(prefix+"/status", 1, true, statusOffline).WaitTimeout(time.Second)
	mq.conn.Disconnect(250)
}
