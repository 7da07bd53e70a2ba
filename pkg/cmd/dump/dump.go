package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	pkgtracer "github.com/fvutils/dv-transaction-trace/pkg/tracer"
)

var (
	dumpOpts struct {
		input string
		stats bool
	}

	dumpFlags = pflag.NewFlagSet("dump", pflag.ContinueOnError)
)

func init() {
	dumpFlags.StringVarP(&dumpOpts.input, "input", "i", "trace.pftrace", "Trace file to read")
	dumpFlags.BoolVar(&dumpOpts.stats, "stats", false, "Print per-kind packet counts instead of every packet")
}

func New(vp *viper.Viper) *cobra.Command {
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Decode a recorded trace and print its packets",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 同 record：flag 缺省值可被 DVTT_* 环境变量和 config 文件覆盖
			dumpOpts.input = vp.GetString("input")
			dumpOpts.stats = vp.GetBool("stats")

			f, err := os.Open(dumpOpts.input)
			if err != nil {
				return err
			}
			defer f.Close()

			out := bufio.NewWriter(os.Stdout)
			defer out.Flush()

			reader := pkgtracer.NewReader(f)
			counts := make(map[pkgtracer.PacketKind]int)
			for {
				p, err := reader.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				counts[p.Kind]++
				if !dumpOpts.stats {
					printPacket(out, reader, p)
				}
			}

			if dumpOpts.stats {
				for _, k := range []pkgtracer.PacketKind{
					pkgtracer.KindClock,
					pkgtracer.KindTrackDescriptor,
					pkgtracer.KindSliceBegin,
					pkgtracer.KindSliceEnd,
					pkgtracer.KindOther,
				} {
					if counts[k] > 0 {
						fmt.Fprintf(out, "%-6s %d\n", k, counts[k])
					}
				}
			}
			return nil
		},
	}
	dump.Flags().AddFlagSet(dumpFlags)
	if err := vp.BindPFlags(dump.Flags()); err != nil {
		logrus.WithError(err).Error("DVTT couldn't bind dump flags")
	}
	return dump
}

func printPacket(w io.Writer, r *pkgtracer.Reader, p *pkgtracer.Packet) {
	switch p.Kind {
	case pkgtracer.KindClock:
		fmt.Fprintf(w, "clock  id=%d\n", p.ClockID)

	case pkgtracer.KindTrackDescriptor:
		if p.ParentUUID != 0 {
			fmt.Fprintf(w, "track  uuid=%d name=%q parent=%d\n", p.UUID, p.Name, p.ParentUUID)
		} else {
			fmt.Fprintf(w, "track  uuid=%d name=%q\n", p.UUID, p.Name)
		}

	case pkgtracer.KindSliceBegin:
		track := trackLabel(r, p.TrackUUID)
		fmt.Fprintf(w, "begin  t=%-8d %s %q%s\n", p.Timestamp, track, p.Name, suffix(p))

	case pkgtracer.KindSliceEnd:
		track := trackLabel(r, p.TrackUUID)
		fmt.Fprintf(w, "end    t=%-8d %s%s\n", p.Timestamp, track, flows(p))

	default:
		fmt.Fprintf(w, "other  t=%d\n", p.Timestamp)
	}
}

func trackLabel(r *pkgtracer.Reader, uuid uint64) string {
	if name, ok := r.TrackName(uuid); ok {
		return fmt.Sprintf("[%s]", name)
	}
	return fmt.Sprintf("[track %d]", uuid)
}

func suffix(p *pkgtracer.Packet) string {
	var sb strings.Builder
	if len(p.Categories) > 0 {
		fmt.Fprintf(&sb, " cat=%s", strings.Join(p.Categories, ","))
	}
	for _, a := range p.Annotations {
		switch a.Kind {
		case pkgtracer.AnnUint:
			fmt.Fprintf(&sb, " %s=%d", a.Name, a.Uint)
		case pkgtracer.AnnInt:
			fmt.Fprintf(&sb, " %s=%d", a.Name, a.Int)
		case pkgtracer.AnnDouble:
			fmt.Fprintf(&sb, " %s=%g", a.Name, a.Double)
		case pkgtracer.AnnString:
			fmt.Fprintf(&sb, " %s=%q", a.Name, a.Str)
		}
	}
	sb.WriteString(flows(p))
	return sb.String()
}

func flows(p *pkgtracer.Packet) string {
	if len(p.FlowIDs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(" flow=")
	for i, id := range p.FlowIDs {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", id)
	}
	return sb.String()
}
