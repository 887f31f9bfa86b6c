/* Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTCouplings couples a Runner to an MQTT broker.  Documents arrive
// on the subscription topics, and match records are published to
// PubTopic.
type MQTTCouplings struct {
	// Broker is the broker address ("tcp://localhost").  When Port
	// is nonzero, it is appended as ":PORT".
	Broker string `json:"broker" yaml:"broker"`
	Port   int    `json:"port,omitempty" yaml:"port"`

	ClientId string `json:"clientId,omitempty" yaml:"clientid"`
	Username string `json:"username,omitempty" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password"`

	// SubTopics is a comma-separated list of subscription topics,
	// each optionally of the form TOPIC:QOS.
	SubTopics string `json:"subTopics" yaml:"subtopics"`

	// PubTopic receives match records, optionally TOPIC:QOS.
	PubTopic string `json:"pubTopic" yaml:"pubtopic"`

	KeepAlive     time.Duration `json:"keepAlive,omitempty" yaml:"keepalive"`
	AutoReconnect bool          `json:"reconnect,omitempty" yaml:"reconnect"`
	CleanSession  bool          `json:"clean,omitempty" yaml:"clean"`

	// Quiesce is the disconnection quiescence in milliseconds.
	Quiesce uint `json:"quiesce,omitempty" yaml:"quiesce"`

	// InTimeout bounds in-bound queuing.
	InTimeout time.Duration `json:"inTimeout,omitempty" yaml:"intimeout"`

	// Optional TLS material.
	CAFile   string `json:"caFile,omitempty" yaml:"cafile"`
	CertFile string `json:"certFile,omitempty" yaml:"certfile"`
	KeyFile  string `json:"keyFile,omitempty" yaml:"keyfile"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure"`

	Client mqtt.Client `json:"-" yaml:"-"`

	in   chan *Document
	out  chan *Record
	done chan bool
}

// NewMQTTCouplings makes an unconnected MQTTCouplings with some
// defaults.
func NewMQTTCouplings(broker, subTopics, pubTopic string) *MQTTCouplings {
	return &MQTTCouplings{
		Broker:    broker,
		SubTopics: subTopics,
		PubTopic:  pubTopic,
		KeepAlive: 600 * time.Second,
		Quiesce:   100,
		InTimeout: 5 * time.Second,
		in:        make(chan *Document),
		out:       make(chan *Record),
		done:      make(chan bool),
	}
}

// opts builds Paho client options from the coupling's fields.
func (c *MQTTCouplings) opts(ctx context.Context) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions()

	broker := c.Broker
	if c.Port != 0 {
		broker = fmt.Sprintf("%s:%d", broker, c.Port)
	}
	opts.AddBroker(broker)
	opts.SetClientID(c.ClientId)
	opts.SetKeepAlive(c.KeepAlive)
	opts.SetPingTimeout(10 * time.Second)

	opts.Username = c.Username
	opts.Password = c.Password
	opts.AutoReconnect = c.AutoReconnect
	opts.CleanSession = c.CleanSession

	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}
	if c.CAFile != "" {
		certs, err := ioutil.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("couldn't read '%s': %s", c.CAFile, err)
		}
		if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
			log.Println("No certs appended, using system certs only")
		}
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: c.Insecure,
		RootCAs:            rootCAs,
	}

	if c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, err
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}

	opts.SetTLSConfig(tlsConf)

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost")
	}

	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		c.consume(ctx, msg.Topic(), msg.Payload())
	}

	return opts, nil
}

// consume parses one in-bound payload as a document and forwards it.
func (c *MQTTCouplings) consume(ctx context.Context, topic string, payload []byte) {
	doc, err := DecodeDocument(payload)
	if err != nil {
		log.Printf("Couldn't parse payload on %s: %s", topic, err)
		return
	}
	if doc.Id == "" {
		doc.Id = topic
	}

	to := time.NewTimer(c.InTimeout)
	defer to.Stop()

	select {
	case <-ctx.Done():
	case c.in <- doc:
	case <-to.C:
		log.Printf("Dropping document due to stall ('%s')", topic)
	}
}

// Start creates the MQTT session and subscribes.
func (c *MQTTCouplings) Start(ctx context.Context) error {
	opts, err := c.opts(ctx)
	if err != nil {
		return err
	}
	c.Client = mqtt.NewClient(opts)

	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	for _, topic := range strings.Split(c.SubTopics, ",") {
		topic, qos := parseTopic(topic)
		if topic == "" {
			continue
		}
		if t := c.Client.Subscribe(topic, qos, nil); t.Wait() && t.Error() != nil {
			return t.Error()
		}
	}

	go c.outLoop(ctx)

	return nil
}

// IO returns the coupling's channels.
func (c *MQTTCouplings) IO(ctx context.Context) (chan *Document, chan *Record, chan bool, error) {
	return c.in, c.out, c.done, nil
}

// outLoop publishes out-bound records to the broker.
func (c *MQTTCouplings) outLoop(ctx context.Context) {
	topic, qos := parseTopic(c.PubTopic)
LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP
		case r := <-c.out:
			if r == nil {
				break LOOP
			}
			js, err := json.Marshal(r)
			if err != nil {
				log.Printf("Failed to marshal %#v", r)
				continue
			}
			token := c.Client.Publish(topic, qos, false, js)
			token.Wait()
			if token.Error() != nil {
				log.Printf("Publish error: %s", token.Error())
			}
		}
	}
}

// Stop terminates the MQTT session.
func (c *MQTTCouplings) Stop(context.Context) error {
	c.Client.Disconnect(c.Quiesce)
	return nil
}

// parseTopic can extract QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	var topic string
	var qos byte
	if _, err := fmt.Sscanf(strings.Replace(s, ":", " ", 1), "%s %d", &topic, &qos); err != nil {
		return s, 0
	}
	return topic, qos
}
