package record

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fvutils/dv-transaction-trace/pkg/config"
	pkgtracer "github.com/fvutils/dv-transaction-trace/pkg/tracer"
)

var (
	// recorder var
	recordOpts struct {
		output    string
		script    string
		demo      bool
		name      string
		timeUnits string
		otel      string
	}

	// recorder flags
	recordFlags = pflag.NewFlagSet("record", pflag.ContinueOnError)
)

func init() {
	recordFlags.StringVarP(&recordOpts.output, "output", "o", "trace.pftrace", "Trace file to write")
	recordFlags.StringVar(&recordOpts.script, "script", "", "JSONL script of trace operations, one object per line")
	recordFlags.BoolVar(&recordOpts.demo, "demo", false, "Record the built-in bus read/write demo scene")
	recordFlags.StringVar(&recordOpts.name, "name", "dvtt", "Trace name")
	recordFlags.StringVar(&recordOpts.timeUnits, "time-units", config.DefaultTimeUnits, "Simulation time units, e.g. 1ns or 10ps")
	recordFlags.StringVar(&recordOpts.otel, "otel", "off", "Mirror transactions to OpenTelemetry: off, stdout or grpc")
}

func New(vp *viper.Viper) *cobra.Command {
	record := &cobra.Command{
		Use:   "record",
		Short: "Record a transaction trace from a script or the built-in demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			// viper 优先级：显式 flag > env (DVTT_*) > config 文件 > flag 默认值
			recordOpts.output = vp.GetString("output")
			recordOpts.script = vp.GetString("script")
			recordOpts.demo = vp.GetBool("demo")
			recordOpts.name = vp.GetString("name")
			recordOpts.timeUnits = vp.GetString("time-units")
			recordOpts.otel = vp.GetString("otel")

			if !recordOpts.demo && recordOpts.script == "" {
				return fmt.Errorf("either --script or --demo is required")
			}

			trace, err := pkgtracer.Create(recordOpts.output, recordOpts.name, recordOpts.timeUnits)
			if err != nil {
				return err
			}

			// init exporter
			shutdown := func(context.Context) error { return nil }
			switch recordOpts.otel {
			case "stdout":
				shutdown, err = trace.InitStdoutExporter(nil)
			case "grpc":
				shutdown, err = trace.InitGRPCExporter(cmd.Context())
			case "off":
			default:
				err = fmt.Errorf("unknown otel mode %q", recordOpts.otel)
			}
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logrus.Error(err)
				}
			}()

			if recordOpts.demo {
				if err := runDemo(trace); err != nil {
					return err
				}
			} else {
				f, err := os.Open(recordOpts.script)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := runScript(trace, f); err != nil {
					return err
				}
			}

			if err := trace.Close(); err != nil {
				return err
			}
			logrus.Infof("DVTT wrote trace to %s", recordOpts.output)
			return nil
		},
	}
	record.Flags().AddFlagSet(recordFlags)
	if err := vp.BindPFlags(record.Flags()); err != nil {
		logrus.WithError(err).Error("DVTT couldn't bind record flags")
	}
	return record
}

// scriptOp is one line of the JSONL script. Labels are script-local names;
// the runner maps them to the trace's integer handles and resolves every
// use back through the handle registry, the same path a foreign-language
// binding would take.
type scriptOp struct {
	Op     string `json:"op"`
	Label  string `json:"label"`
	Stream string `json:"stream"`
	Txn    string `json:"txn"`
	Parent string `json:"parent"`
	Target string `json:"target"`

	Name     string `json:"name"`
	Scope    string `json:"scope"`
	Type     string `json:"type"`
	Relation string `json:"relation"`

	Time uint64 `json:"time"`

	// attribute payload
	Kind    string  `json:"kind"` // int, uint, double, string, time, bits, blob
	Radix   string  `json:"radix"`
	Int     int64   `json:"ivalue"`
	Uint    uint64  `json:"uvalue"`
	Double  float64 `json:"dvalue"`
	Str     string  `json:"svalue"`
	Hex     string  `json:"hvalue"` // hex-encoded bytes for bits and blob
	NumBits int     `json:"num_bits"`
}

func parseRadix(s string) pkgtracer.Radix {
	switch s {
	case "bin":
		return pkgtracer.RadixBin
	case "oct":
		return pkgtracer.RadixOct
	case "dec":
		return pkgtracer.RadixDec
	case "u", "unsigned":
		return pkgtracer.RadixUnsigned
	case "time":
		return pkgtracer.RadixTime
	default:
		return pkgtracer.RadixHex
	}
}

func runScript(trace *pkgtracer.Trace, r io.Reader) error {
	streams := make(map[string]int) // label -> stream handle
	txns := make(map[string]int)    // label -> transaction handle

	resolveStream := func(label string) (*pkgtracer.Stream, error) {
		s := trace.StreamFromHandle(streams[label])
		if s == nil {
			return nil, fmt.Errorf("unknown or freed stream %q", label)
		}
		return s, nil
	}
	resolveTxn := func(label string) (*pkgtracer.Transaction, error) {
		x := trace.TransactionFromHandle(txns[label])
		if x == nil {
			return nil, fmt.Errorf("unknown or freed transaction %q", label)
		}
		return x, nil
	}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var op scriptOp
		if err := json.Unmarshal(raw, &op); err != nil {
			return fmt.Errorf("script line %d: %w", line, err)
		}
		if err := applyOp(trace, &op, streams, txns, resolveStream, resolveTxn); err != nil {
			return fmt.Errorf("script line %d (%s): %w", line, op.Op, err)
		}
	}
	return sc.Err()
}

func applyOp(trace *pkgtracer.Trace, op *scriptOp,
	streams, txns map[string]int,
	resolveStream func(string) (*pkgtracer.Stream, error),
	resolveTxn func(string) (*pkgtracer.Transaction, error)) error {

	switch op.Op {
	case "open_stream":
		s, err := trace.OpenStream(op.Name, op.Scope, op.Type)
		if err != nil {
			return err
		}
		streams[op.Label] = s.Handle()

	case "close_stream":
		s, err := resolveStream(op.Stream)
		if err != nil {
			return err
		}
		return s.Close()

	case "free_stream":
		s, err := resolveStream(op.Stream)
		if err != nil {
			return err
		}
		return s.Free()

	case "open_txn":
		s, err := resolveStream(op.Stream)
		if err != nil {
			return err
		}
		var parent *pkgtracer.Transaction
		if op.Parent != "" {
			if parent, err = resolveTxn(op.Parent); err != nil {
				return err
			}
		}
		x, err := s.OpenTransaction(op.Name, op.Time, op.Type, parent)
		if err != nil {
			return err
		}
		txns[op.Label] = x.Handle()

	case "close_txn":
		x, err := resolveTxn(op.Txn)
		if err != nil {
			return err
		}
		return x.Close(op.Time)

	case "free_txn":
		x, err := resolveTxn(op.Txn)
		if err != nil {
			return err
		}
		if err := x.Free(op.Time); err != nil {
			return err
		}
		delete(txns, op.Txn)

	case "add_attr":
		x, err := resolveTxn(op.Txn)
		if err != nil {
			return err
		}
		return applyAttr(x, op)

	case "add_link":
		x, err := resolveTxn(op.Txn)
		if err != nil {
			return err
		}
		target, err := resolveTxn(op.Target)
		if err != nil {
			return err
		}
		return x.Link(target, pkgtracer.LinkRelated, op.Relation)

	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

func applyAttr(x *pkgtracer.Transaction, op *scriptOp) error {
	switch op.Kind {
	case "int":
		return x.AddInt64(op.Name, op.Int, parseRadix(op.Radix))
	case "uint":
		return x.AddUint64(op.Name, op.Uint, parseRadix(op.Radix))
	case "double":
		return x.AddFloat64(op.Name, op.Double)
	case "string":
		return x.AddString(op.Name, op.Str)
	case "time":
		return x.AddTime(op.Name, op.Uint)
	case "bits":
		bits, err := hex.DecodeString(op.Hex)
		if err != nil {
			return err
		}
		return x.AddBits(op.Name, bits, op.NumBits, parseRadix(op.Radix))
	case "blob":
		data, err := hex.DecodeString(op.Hex)
		if err != nil {
			return err
		}
		return x.AddBlob(op.Name, data)
	default:
		return fmt.Errorf("unknown attribute kind %q", op.Kind)
	}
}

// runDemo records a small bus scene: a write with a nested arbitration
// phase on the initiator stream, and the linked memory update on the
// target stream.
func runDemo(trace *pkgtracer.Trace) error {
	initiator, err := trace.OpenStream("initiator", "tb.bus", "bus_if")
	if err != nil {
		return err
	}
	target, err := trace.OpenStream("target", "tb.mem", "mem_if")
	if err != nil {
		return err
	}

	write, err := initiator.OpenTransaction("WRITE", 100, "bus_write", nil)
	if err != nil {
		return err
	}
	_ = write.AddUint64("addr", 0x4000, pkgtracer.RadixHex)
	_ = write.AddUint64("data", 0xdeadbeef, pkgtracer.RadixHex)
	_ = write.AddString("resp", "OKAY")

	arb, err := initiator.OpenTransaction("ARB", 110, "bus_arb", write)
	if err != nil {
		return err
	}
	_ = arb.AddUint64("grant", 1, pkgtracer.RadixDec)
	if err := arb.Close(130); err != nil {
		return err
	}

	update, err := target.OpenTransaction("MEM_UPDATE", 120, "mem_write", nil)
	if err != nil {
		return err
	}
	_ = update.AddUint64("addr", 0x4000, pkgtracer.RadixHex)
	if err := write.Link(update, pkgtracer.LinkCauseEffect, "commits"); err != nil {
		return err
	}
	if err := update.Close(170); err != nil {
		return err
	}

	if err := write.Close(180); err != nil {
		return err
	}

	if err := initiator.Free(); err != nil {
		return err
	}
	return target.Free()
}
