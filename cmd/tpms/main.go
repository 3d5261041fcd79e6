package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"

	tpms "github.com/bkbilly/tpms-ble"
	"github.com/bkbilly/tpms-ble/gateway"
	"github.com/bkbilly/tpms-ble/parser"
	"github.com/bkbilly/tpms-ble/registry"
)

func main() {
	app := cli.NewApp()
	app.Name = "tpms"
	app.Usage = "decode TPMS BLE advertisements"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	}
	app.Before = func(c *cli.Context) error {
		if c.GlobalBool("debug") {
			tpms.SetLogLevelMax()
		}
		return nil
	}
	app.Commands = []cli.Command{
		decodeCommand,
		gatewayCommand,
	}

	if err := app.Run(os.Args); err != nil {
		tpms.GetLogger().Error(err)
		os.Exit(1)
	}
}

var decodeCommand = cli.Command{
	Name:      "decode",
	Usage:     "decode hex payloads from arguments or stdin, one JSON reading per line",
	ArgsUsage: "[hex payload...]",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "pdu",
			Usage: "treat input as a full advertising PDU instead of manufacturer data",
		},
		cli.IntFlag{
			Name:  "company",
			Usage: "company ID for raw manufacturer data",
			Value: 0x0100,
		},
		cli.StringFlag{
			Name:  "addr",
			Usage: "source address to attribute the payload to",
			Value: "00:00:00:00:00:00",
		},
		cli.IntFlag{
			Name:  "rssi",
			Usage: "signal strength to attribute to the payload",
			Value: -60,
		},
	},
	Action: runDecode,
}

func runDecode(c *cli.Context) error {
	inputs := c.Args()
	if len(inputs) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				inputs = append(inputs, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
	}

	decoded := 0
	for _, in := range inputs {
		raw, err := hex.DecodeString(strings.ReplaceAll(in, ":", ""))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: bad hex: %v\n", in, err)
			continue
		}

		adv, err := buildAdv(c, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", in, err)
			continue
		}

		reading, err := tpms.Decode(adv)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", in, err)
			continue
		}

		out, err := jsoniter.Marshal(reading)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		decoded++
	}

	if decoded == 0 {
		return cli.NewExitError("no payload decoded", 1)
	}
	return nil
}

func buildAdv(c *cli.Context, raw []byte) (tpms.Advertisement, error) {
	if c.Bool("pdu") {
		return parser.Advertisement(c.String("addr"), c.Int("rssi"), raw)
	}

	company := c.Int("company")
	if company < 0 || company > int(^uint16(0)) {
		return tpms.Advertisement{}, fmt.Errorf("company ID %d out of range", company)
	}
	return tpms.Advertisement{
		Addr:             tpms.NewAddr(c.String("addr")),
		RSSI:             c.Int("rssi"),
		ManufacturerData: map[uint16][]byte{uint16(company): raw},
	}, nil
}

var gatewayCommand = cli.Command{
	Name:  "gateway",
	Usage: "consume proxy advertisements from MQTT, publish readings and serve metrics",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "broker",
			Usage: "MQTT broker URL",
			Value: "tcp://localhost:1883",
		},
		cli.StringFlag{
			Name:  "client-id",
			Usage: "MQTT client ID",
			Value: "tpms-gateway",
		},
		cli.StringFlag{
			Name:  "topic",
			Usage: "topic carrying proxy advertisement envelopes",
			Value: "tpms/advertisements",
		},
		cli.StringFlag{
			Name:  "readings-topic",
			Usage: "topic prefix for published readings",
			Value: "tpms/readings",
		},
		cli.StringFlag{
			Name:  "listen",
			Usage: "Prometheus listen address, empty to disable",
			Value: ":9140",
		},
		cli.StringFlag{
			Name:  "registry-file",
			Usage: "JSON file for persisted device state, empty for memory only",
		},
		cli.DurationFlag{
			Name:  "store-interval",
			Usage: "how often to flush the registry file",
			Value: time.Minute,
		},
	},
	Action: runGateway,
}

func runGateway(c *cli.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.String("broker"))
	opts.SetClientID(c.String("client-id"))
	opts.SetAutoReconnect(true)
	client := mqtt.NewClient(opts)

	reg := registry.New(c.String("registry-file"))
	gw := gateway.New(gateway.Config{
		AdvertisementTopic: c.String("topic"),
		ReadingTopic:       c.String("readings-topic"),
		ListenAddr:         c.String("listen"),
		StoreInterval:      c.Duration("store-interval"),
	}, client, reg, prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return gw.Run(ctx)
}
