package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "json", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	Info("message processed", KeyPortID, 7, KeyOpcode, "M_READ", KeyInvokeID, 2)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record["msg"] != "message processed" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record[KeyPortID] != float64(7) {
		t.Errorf("port_id = %v", record[KeyPortID])
	}
	if record[KeyOpcode] != "M_READ" {
		t.Errorf("opcode = %v", record[KeyOpcode])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	Debug("hidden")
	Info("hidden too")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("low-level records leaked: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestTextAttrs(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("session created", KeyPortID, 3, KeyState, "AWAITCON")

	out := buf.String()
	if !strings.Contains(out, "port_id=3") || !strings.Contains(out, "state=AWAITCON") {
		t.Errorf("attrs missing from text output: %q", out)
	}
}
