// Command inspect opens a Matroska file and prints its segments, tracks,
// tags, attachments and chapters. It succeeds the teacher's example/extracter
// command, trading single-track demuxing for a structural dump of the
// container model this module builds. Diagnostics use logrus (grounded in
// ugparu-gomedia's dependency on it); the core packages never import it.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/mutwol/tagparser/matroska"
	"github.com/mutwol/tagparser/notice"
)

func main() {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file.mkv>\n", os.Args[0])
		os.Exit(1)
	}
	path := os.Args[1]

	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).Fatal("open input file")
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		log.WithError(err).Fatal("stat input file")
	}

	bus := notice.New()
	container, err := matroska.Open(path, f, uint64(stat.Size()), bus)
	if err != nil {
		log.WithError(err).Fatal("open container")
	}

	for i := range container.Segments {
		if err := container.ParseSegment(i); err != nil {
			log.WithError(err).Fatalf("parse segment %d", i)
		}
	}
	container.ValidateIndex()

	fmt.Printf("DocType: %s v%d (read v%d)\n", container.Header.DocType, container.Header.DocTypeVersion, container.Header.DocTypeReadVersion)
	fmt.Printf("Segments: %d\n\n", len(container.Segments))

	for i, seg := range container.Segments {
		fmt.Printf("== Segment %d ==\n", i)
		if seg.Info != nil {
			fmt.Printf("  Title: %q\n", seg.Info.Title)
			fmt.Printf("  MuxingApp/WritingApp: %q / %q\n", seg.Info.MuxingApp, seg.Info.WritingApp)
			fmt.Printf("  TimecodeScale: %d  Duration: %d\n", seg.Info.TimecodeScale, seg.Info.Duration)
		}
		fmt.Printf("  Clusters: %d\n", len(seg.Clusters))
		for _, t := range seg.Tracks {
			fmt.Printf("  Track #%d: type=%d codec=%s name=%q lang=%s\n", t.Number, t.Type, t.CodecID, t.Name, t.Language)
		}
		for _, tag := range seg.Tags {
			for _, st := range tag.SimpleTags {
				fmt.Printf("  Tag[%s]: %s = %q\n", tag.Target.TargetType, st.Name, st.String)
			}
		}
		for _, a := range seg.Attachments {
			fmt.Printf("  Attachment: %q (%s, %d bytes)\n", a.Name, a.MimeType, len(a.Data))
		}
		for _, ch := range seg.Chapters {
			fmt.Printf("  Chapter UID=%d [%d..%d]\n", ch.UID, ch.TimeStart, ch.TimeEnd)
		}
		fmt.Println()
	}

	for _, n := range bus.Entries() {
		switch n.Level {
		case notice.Critical:
			log.WithField("context", n.Context).Error(n.Message)
		case notice.Warning:
			log.WithField("context", n.Context).Warn(n.Message)
		default:
			log.WithField("context", n.Context).Info(n.Message)
		}
	}
	if bus.HasCritical() {
		os.Exit(1)
	}
}
