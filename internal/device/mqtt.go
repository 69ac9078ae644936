package device

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MQTTDialer opens paho sessions against device brokers. The subscribe is
// issued from the OnConnect callback, so Dial returns without waiting for the
// broker; a connect to an unreachable endpoint stays pending until the
// transport reports the failure, at which point onClose clears the entry so
// a later Connect is not rejected.
type MQTTDialer struct {
	ClientID    string
	KeepAlive   time.Duration
	PingTimeout time.Duration
}

func (d *MQTTDialer) Dial(endpoint, topic string, onMessage func([]byte), onClose func(error)) (Session, error) {
	keepAlive := d.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	pingTimeout := d.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(endpoint).
		SetClientID(fmt.Sprintf("%s-%s", d.ClientID, uuid.NewString()[:8])).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false)

	opts.OnConnect = func(c mqtt.Client) {
		log.Info().Str("endpoint", endpoint).Msg("connected to device broker")
		if token := c.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			onMessage(msg.Payload())
		}); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", topic).Msg("subscribe failed")
		} else {
			log.Info().Str("topic", topic).Msg("subscribed")
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		onClose(err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("endpoint", endpoint).Msg("device connect failed")
			onClose(token.Error())
		}
	}()

	return &mqttSession{client: client}, nil
}

type mqttSession struct {
	client mqtt.Client
}

func (s *mqttSession) Close() {
	s.client.Disconnect(250)
}
