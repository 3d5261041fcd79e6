// Package gateway consumes raw BLE advertisements forwarded by
// Bluetooth proxies over MQTT, decodes them and republishes normalized
// readings, with last-known values exposed as Prometheus metrics.
package gateway

import (
	"context"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tpms "github.com/bkbilly/tpms-ble"
	"github.com/bkbilly/tpms-ble/parser"
	"github.com/bkbilly/tpms-ble/registry"
)

// Client is the subset of the paho MQTT client the gateway uses.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// Envelope is one proxy-forwarded advertisement: the source address,
// the observed signal strength and the raw advertising PDU.
type Envelope struct {
	Addr string `json:"addr"`
	RSSI int    `json:"rssi"`
	PDU  []byte `json:"pdu"`
}

type Config struct {
	// AdvertisementTopic is subscribed to for proxy envelopes.
	AdvertisementTopic string
	// ReadingTopic is the prefix readings are published under; the
	// device address is appended.
	ReadingTopic string
	// ListenAddr serves the Prometheus endpoint, empty to disable.
	ListenAddr string
	// StoreInterval flushes the registry file, zero to flush only on
	// shutdown.
	StoreInterval time.Duration
}

type Gateway struct {
	cfg     Config
	client  Client
	reg     *registry.Registry
	prom    prometheus.Registerer
	metrics *metrics
	log     tpms.Logger
}

func New(cfg Config, client Client, reg *registry.Registry, prom prometheus.Registerer) *Gateway {
	return &Gateway{
		cfg:     cfg,
		client:  client,
		reg:     reg,
		prom:    prom,
		metrics: newMetrics(prom),
		log:     tpms.GetLogger().ChildLogger(map[string]interface{}{"component": "gateway"}),
	}
}

// HandlePayload processes one proxy envelope and returns the updated
// device state. Undecodable payloads are a normal outcome and are
// reported, counted and dropped.
func (g *Gateway) HandlePayload(payload []byte) (registry.Device, error) {
	var env Envelope
	if err := jsoniter.Unmarshal(payload, &env); err != nil {
		g.metrics.decodes.WithLabelValues("invalid_envelope").Inc()
		return registry.Device{}, errors.Wrap(err, "unmarshal envelope")
	}

	adv, err := parser.Advertisement(env.Addr, env.RSSI, env.PDU)
	if err != nil {
		g.metrics.decodes.WithLabelValues("invalid_pdu").Inc()
		return registry.Device{}, errors.Wrap(err, "parse pdu")
	}

	reading, err := tpms.Decode(adv)
	if err != nil {
		switch {
		case errors.Is(err, tpms.ErrMalformed):
			g.metrics.decodes.WithLabelValues("malformed").Inc()
		default:
			g.metrics.decodes.WithLabelValues("unrecognized").Inc()
		}
		return registry.Device{}, err
	}
	g.metrics.decodes.WithLabelValues("ok").Inc()

	dev := g.reg.Update(adv.Addr, reading)
	g.metrics.observe(dev)

	return dev, nil
}

func (g *Gateway) handle(_ mqtt.Client, msg mqtt.Message) {
	dev, err := g.HandlePayload(msg.Payload())
	if err != nil {
		g.log.Debugf("drop advertisement: %v", err)
		return
	}

	out, err := jsoniter.Marshal(dev)
	if err != nil {
		g.log.Errorf("marshal reading for %s: %v", dev.Addr, err)
		return
	}
	g.client.Publish(g.cfg.ReadingTopic+"/"+dev.Addr, 0, false, out)
}

// Run connects, subscribes and serves metrics until ctx is cancelled.
// The registry file is flushed on the way out.
func (g *Gateway) Run(ctx context.Context) error {
	if token := g.client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "mqtt connect")
	}
	defer g.client.Disconnect(250)

	if err := g.reg.Load(); err != nil {
		g.log.Warnf("load registry: %v", err)
	}

	if token := g.client.Subscribe(g.cfg.AdvertisementTopic, 0, g.handle); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "mqtt subscribe")
	}
	g.log.Infof("subscribed to %s", g.cfg.AdvertisementTopic)

	var srv *http.Server
	if g.cfg.ListenAddr != "" {
		mux := http.NewServeMux()
		if gatherer, ok := g.prom.(prometheus.Gatherer); ok {
			mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		} else {
			mux.Handle("/metrics", promhttp.Handler())
		}
		srv = &http.Server{Addr: g.cfg.ListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				g.log.Errorf("metrics server: %v", err)
			}
		}()
	}

	var flush <-chan time.Time
	if g.cfg.StoreInterval > 0 {
		t := time.NewTicker(g.cfg.StoreInterval)
		defer t.Stop()
		flush = t.C
	}

	for {
		select {
		case <-flush:
			if err := g.reg.Store(); err != nil {
				g.log.Warnf("store registry: %v", err)
			}
		case <-ctx.Done():
			if srv != nil {
				sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = srv.Shutdown(sctx)
				cancel()
			}
			if err := g.reg.Store(); err != nil {
				return errors.Wrap(err, "store registry")
			}
			return nil
		}
	}
}
