package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/llehouerou/tides/internal/config"
)

func TestSetup_Disabled(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, config.LogConfig{Write: true})
	closeFn, err := Setup(config.LogConfig{})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer closeFn()

	Infof("hidden %d", 1)
	WithField("k", "v").Info("hidden too")

	if buf.Len() != 0 {
		t.Errorf("disabled logging wrote %q", buf.String())
	}
}

func TestSetupWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, config.LogConfig{Write: true, Level: "warn"})
	defer SetupWriter(&bytes.Buffer{}, config.LogConfig{})

	Infof("dropped")
	Warnf("kept %s", "warning")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "kept warning") {
		t.Errorf("output = %q, want the warning", out)
	}
}

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, config.LogConfig{Write: true, Level: "debug", JSON: true})
	defer SetupWriter(&bytes.Buffer{}, config.LogConfig{})

	WithFields(Fields{"track": "t1"}).Debug("resolved")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["track"] != "t1" || entry["msg"] != "resolved" {
		t.Errorf("entry = %v", entry)
	}
}
