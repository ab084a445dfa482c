// Package mqtt publishes dump results and sensor flags to an MQTT broker.
package mqtt

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/datalogger/pkg/dump"
	"github.com/robotalks/datalogger/pkg/protocol"
)

// Topics relative to <prefix><host-id>/.
const (
	TopicDump    = "dump"
	TopicSensors = "sensors"
	TopicStatus  = "status"
)

// Status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PublishTimeout bounds the wait for a publish to be acknowledged.
const PublishTimeout = 2 * time.Second

// Publisher implements device.ResultHandler and device.StateNotifier.
type Publisher struct {
	Queue  *Queue
	HostID string

	endpoint string
	lock     sync.RWMutex
}

// NewPublisher creates a Publisher for broker URL.
func NewPublisher(brokerURL, hostID string) (*Publisher, error) {
	p := &Publisher{HostID: hostID}
	opts, topicPrefix, err := p.clientOptions(brokerURL)
	if err != nil {
		return nil, err
	}
	p.Queue = NewQueue(opts, topicPrefix)
	p.Queue.OnConnect = func(*Queue) { p.publishStatus(StatusOnline) }
	return p, nil
}

// clientOptions sets the retained offline status as the will.
func (p *Publisher) clientOptions(brokerURL string) (*paho.ClientOptions, string, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, "", err
	}
	will, err := Encode(StatusPayload("", StatusOffline, time.Now()))
	if err != nil {
		return nil, "", err
	}
	opts.SetBinaryWill(topicPrefix+p.topic(TopicStatus), will, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("datalogger:" + p.HostID)
	}
	return opts, topicPrefix, nil
}

// SetEndpoint sets the endpoint reported in payloads.
func (p *Publisher) SetEndpoint(endpoint string) {
	p.lock.Lock()
	p.endpoint = endpoint
	p.lock.Unlock()
}

func (p *Publisher) currentEndpoint() string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.endpoint
}

// HandleResult implements device.ResultHandler.
func (p *Publisher) HandleResult(ctx context.Context, res dump.Result) {
	p.publish(TopicDump, ResultPayload(p.currentEndpoint(), res, time.Now()), false)
}

// StateChanged implements device.StateNotifier.
func (p *Publisher) StateChanged(ctx context.Context, states protocol.StateVector) {
	p.publish(TopicSensors, StatePayload(p.currentEndpoint(), states, time.Now()), true)
}

// Connect connects the broker and waits for the result.
func (p *Publisher) Connect() error {
	token := p.Queue.Connect()
	token.Wait()
	return token.Error()
}

// Run implements framework.Runnable. It keeps the broker connection
// until ctx is done and publishes the offline status before leaving.
func (p *Publisher) Run(ctx context.Context) error {
	if !p.Queue.Client.IsConnected() {
		if err := p.Connect(); err != nil {
			return err
		}
	}
	<-ctx.Done()
	p.publishStatus(StatusOffline)
	p.Queue.Close()
	return ctx.Err()
}

func (p *Publisher) topic(name string) string {
	return p.HostID + "/" + name
}

func (p *Publisher) publishStatus(status string) {
	p.publish(TopicStatus, StatusPayload(p.currentEndpoint(), status, time.Now()), true)
}

func (p *Publisher) publish(name string, payload *structpb.Struct, retain bool) {
	data, err := Encode(payload)
	if err != nil {
		glog.Errorf("encode %s payload: %v", name, err)
		return
	}
	token := p.Queue.PubWith(p.topic(name), data, 1, retain)
	if !token.WaitTimeout(PublishTimeout) {
		glog.Warningf("publish %s: timeout", name)
		return
	}
	if err := token.Error(); err != nil {
		glog.Warningf("publish %s: %v", name, err)
	}
}
