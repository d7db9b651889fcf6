package recv

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"smntmb/config"
	"smntmb/protocol"
)

// Publisher is the part of an MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close() error
}

// MQTTSink publishes every block as a SampleBlock message on
// <topic>/<host id>/blocks.
type MQTTSink struct {
	pub   Publisher
	topic string
}

// NewMQTTSink publishes through pub under topic for the given host id.
func NewMQTTSink(pub Publisher, topic, hostID string) *MQTTSink {
	return &MQTTSink{
		pub:   pub,
		topic: strings.TrimSuffix(topic, "/") + "/" + hostID + "/blocks",
	}
}

// Topic returns the topic blocks are published on.
func (s *MQTTSink) Topic() string { return s.topic }

func (s *MQTTSink) WriteBlock(blk *protocol.SampleBlock) error {
	data, err := protocol.MarshalBlock(blk)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.topic, data)
}

func (s *MQTTSink) Close() error {
	return s.pub.Close()
}

// HostID returns a stable identifier of this machine for client IDs and
// topics, derived from the machine ID without exposing it.
func HostID() string {
	id, err := machineid.ProtectedID("smnt-mb-recv")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return "unknown"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// ClientOptions builds paho options from the receiver MQTT settings. The
// broker may be given as mqtt://, tcp://, ssl:// or ws:// URL.
func ClientOptions(cfg config.MQTTConfig, hostID string) (*paho.ClientOptions, error) {
	u, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("recv: mqtt broker: %w", err)
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(5 * time.Second)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "mic-recv-" + hostID
	}
	opts.SetClientID(clientID)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("mqtt connection lost: %v", err)
	})
	return opts, nil
}

// PahoPublisher publishes through a connected paho client.
type PahoPublisher struct {
	Client  paho.Client
	QoS     byte
	Timeout time.Duration
}

// DialMQTT connects to the configured broker.
func DialMQTT(cfg config.MQTTConfig, hostID string) (*PahoPublisher, error) {
	opts, err := ClientOptions(cfg, hostID)
	if err != nil {
		return nil, err
	}
	client := paho.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("recv: mqtt connect: %w", err)
	}
	glog.Infof("mqtt connected to %s", cfg.Broker)
	return &PahoPublisher{Client: client, QoS: cfg.QoS, Timeout: 5 * time.Second}, nil
}

func (p *PahoPublisher) Publish(topic string, payload []byte) error {
	token := p.Client.Publish(topic, p.QoS, false, payload)
	if !token.WaitTimeout(p.Timeout) {
		return fmt.Errorf("recv: mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

func (p *PahoPublisher) Close() error {
	p.Client.Disconnect(250)
	return nil
}
