package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ggonzalez94/walletd/internal/model"
)

func TestRenderJSON(t *testing.T) {
	result := model.ActionResult{
		Success: true,
		Message: "Your wallet is ready: 0xabc",
		Data:    map[string]any{"address": "0xabc"},
	}
	var buf bytes.Buffer
	if err := Render(&buf, result, "json"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out model.ActionResult
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if !out.Success || out.Data["address"] != "0xabc" {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestRenderPlain(t *testing.T) {
	result := model.ActionResult{
		Success: true,
		Message: "Quote: 1 ETH -> 2000.5 USDC",
		Data:    map[string]any{"cached": true, "price": "2000.5"},
	}
	var buf bytes.Buffer
	if err := Render(&buf, result, "plain"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "Quote: 1 ETH -> 2000.5 USDC\n") {
		t.Fatalf("missing message line: %s", got)
	}
	if !strings.Contains(got, "cached=true") || !strings.Contains(got, "price=2000.5") {
		t.Fatalf("missing data line: %s", got)
	}
}

func TestRenderPlainNoData(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, model.ActionResult{Message: "ok"}, "plain"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "ok\n" {
		t.Fatalf("output = %q", buf.String())
	}
}
