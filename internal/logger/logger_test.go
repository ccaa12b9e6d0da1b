package logger

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"testing"
)

func TestRingKeepsNewest(t *testing.T) {
	l := New(3)
	l.SetMirror(false)
	for i := 0; i < 5; i++ {
		l.Info(fmt.Sprintf("msg %d", i))
	}

	all := l.GetAll()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Text != "msg 4" || all[2].Text != "msg 2" {
		t.Fatalf("unexpected order: %+v", all)
	}

	recent := l.GetRecent(2)
	if len(recent) != 2 || recent[0].Text != "msg 4" {
		t.Fatalf("GetRecent(2) = %+v", recent)
	}
	if got := l.GetRecent(10); len(got) != 3 {
		t.Fatalf("GetRecent(10) returned %d", len(got))
	}
}

func TestComponentMirrorsToStandardLog(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	l := New(10)
	l.Component("journal").Warningf("append failed: %d", 7)

	msgs := l.GetAll()
	if len(msgs) != 1 || msgs[0].Component != "journal" || msgs[0].Level != LevelWarning {
		t.Fatalf("unexpected message: %+v", msgs)
	}
	if !strings.Contains(buf.String(), "WARNING: [journal] append failed: 7") {
		t.Fatalf("log output = %q", buf.String())
	}

	select {
	case <-l.Updates():
	default:
		t.Fatalf("expected update notification")
	}
}

func TestLevels(t *testing.T) {
	l := New(10)
	l.SetMirror(false)
	l.Info("a")
	l.Warning("b")
	l.Error("c")
	c := l.Component("api")
	c.Infof("d")
	c.Errorf("e")

	want := []string{LevelError, LevelInfo, LevelError, LevelWarning, LevelInfo}
	for i, m := range l.GetAll() {
		if m.Level != want[i] {
			t.Fatalf("message %d level = %s, want %s", i, m.Level, want[i])
		}
	}
}
