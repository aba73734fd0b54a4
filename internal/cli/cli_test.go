package cli

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/observability"
	"github.com/AdenKoperczak/grib2pf/pkg/pipeline"
	"github.com/AdenKoperczak/grib2pf/pkg/source"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{"render", "composite", "serve", "palette", "products", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVerboseFlagInstallsHooks(t *testing.T) {
	t.Cleanup(observability.Reset)
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"--verbose", "cache", "path", "--dir", t.TempDir()})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !c.verbose() {
		t.Error("--verbose did not lower the log level")
	}
	if _, ok := observability.HTTP().(observability.LogHooks); !ok {
		t.Errorf("HTTP hooks = %T, want LogHooks", observability.HTTP())
	}
}

func TestPaletteCheck(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pal")
	bad := filepath.Join(dir, "bad.pal")
	if err := os.WriteFile(good, []byte("Units: dBZ\nColor: 10 0 0 255\nColor: 50 255 0 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("Color: 10 300 0 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"valid", []string{good}, false},
		{"invalid", []string{bad}, true},
		{"mixed", []string{good, bad}, true},
		{"missing", []string{filepath.Join(dir, "missing.pal")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := New(io.Discard, LogInfo).RootCommand()
			root.SetArgs(append([]string{"palette", "check"}, tt.args...))
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)

			err := root.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("palette check error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidPalette) {
				t.Errorf("palette check error = %v, want code %s", err, errors.ErrCodeInvalidPalette)
			}
		})
	}
}

func TestLoadPaletteDefault(t *testing.T) {
	table, name, err := loadPalette(nil)
	if err != nil {
		t.Fatalf("loadPalette(nil) error: %v", err)
	}
	if table.Len() == 0 {
		t.Error("built-in table is empty")
	}
	if name == "" {
		t.Error("name is empty")
	}
}

func TestSwatch(t *testing.T) {
	if got := swatch(color.NRGBA{}); strings.TrimSpace(got) != "" {
		t.Errorf("swatch(transparent) = %q, want blank", got)
	}
	if got := swatch(color.NRGBA{R: 255, A: 255}); !strings.Contains(got, iconSwatch) {
		t.Errorf("swatch(red) = %q, want it to contain %q", got, iconSwatch)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 << 20, "3.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPlacefileURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080/placefile"},
		{"wx.example.com:9000", "http://wx.example.com:9000/placefile"},
	}
	for _, tt := range tests {
		if got := placefileURL(tt.addr); got != tt.want {
			t.Errorf("placefileURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestProductListModelNavigation(t *testing.T) {
	m := NewProductListModel(source.Products)
	m.Height = 2

	var model tea.Model = m
	for _, k := range []string{"down", "j", "down", "up", "k", "down"} {
		model, _ = model.Update(key(k))
	}
	got := model.(ProductListModel)
	if got.Cursor != 2 {
		t.Errorf("Cursor = %d, want 2", got.Cursor)
	}
	if got.Offset != 1 {
		t.Errorf("Offset = %d, want 1", got.Offset)
	}

	model, cmd := got.Update(key("enter"))
	got = model.(ProductListModel)
	if got.Selected == nil || got.Selected.Name != source.Products[2].Name {
		t.Errorf("Selected = %v, want %s", got.Selected, source.Products[2].Name)
	}
	if cmd == nil {
		t.Error("enter should quit the program")
	}
}

func TestProductListModelBounds(t *testing.T) {
	m := NewProductListModel(source.Products[:2])
	var model tea.Model = m
	for _, k := range []string{"up", "down", "down", "down"} {
		model, _ = model.Update(key(k))
	}
	if got := model.(ProductListModel).Cursor; got != 1 {
		t.Errorf("Cursor = %d, want 1", got)
	}

	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 4})
	if got := model.(ProductListModel).Height; got != 5 {
		t.Errorf("Height = %d, want 5", got)
	}

	view := model.View()
	if !strings.Contains(view, source.Products[0].Name) {
		t.Errorf("View() does not list %s", source.Products[0].Name)
	}
}

func TestProductListModelQuit(t *testing.T) {
	m := NewProductListModel(source.Products)
	model, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Error("q should quit the program")
	}
	if model.(ProductListModel).Selected != nil {
		t.Error("quitting should not select a product")
	}
}

func TestPickProduct(t *testing.T) {
	tests := []struct {
		name string
		keys string
		want *source.Product
	}{
		{"enter picks first", "\r", &source.Products[0]},
		{"down then enter", "j\r", &source.Products[1]},
		{"quit", "q", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var screen strings.Builder
			got, err := pickProduct(source.Products, strings.NewReader(tt.keys), &screen)
			if err != nil {
				t.Fatalf("pickProduct() error = %v", err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("pickProduct() = %s, want nil", got.Name)
			case tt.want != nil && (got == nil || got.Name != tt.want.Name):
				t.Errorf("pickProduct() = %v, want %s", got, tt.want.Name)
			}
			if !strings.Contains(screen.String(), "Select MRMS Product") {
				t.Error("picker did not draw to its output")
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid palette", errors.New(errors.ErrCodeInvalidPalette, "bad"), exitInvalid},
		{"invalid config wrapped", fmt.Errorf("render: %w", errors.New(errors.ErrCodeInvalidConfig, "bad")), exitInvalid},
		{"not found", errors.New(errors.ErrCodeNotFound, "missing"), exitFetch},
		{"timeout", errors.New(errors.ErrCodeTimeout, "slow"), exitFetch},
		{"decode", errors.New(errors.ErrCodeDecode, "truncated"), exitFailure},
		{"plain", fmt.Errorf("plain"), exitFailure},
		{"interrupted", fmt.Errorf("render: %w", context.Canceled), ExitInterrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestCompletionCommand(t *testing.T) {
	for shell := range completionShells {
		t.Run(shell, func(t *testing.T) {
			var out strings.Builder
			root := New(io.Discard, LogInfo).RootCommand()
			root.SetOut(&out)
			root.SetErr(io.Discard)
			root.SetArgs([]string{"completion", shell})
			if err := root.Execute(); err != nil {
				t.Fatalf("completion %s error: %v", shell, err)
			}
			if !strings.Contains(out.String(), appName) {
				t.Errorf("completion %s script does not mention %s", shell, appName)
			}
		})
	}
}

func TestCompleteModes(t *testing.T) {
	got, _ := completeModes(nil, nil, "near")
	if len(got) != 2 || got[0] != "nearest" || got[1] != "nearest_fast" {
		t.Errorf("completeModes(near) = %v, want [nearest nearest_fast]", got)
	}
}

func TestCompleteProductURLs(t *testing.T) {
	got, _ := completeProductURLs(nil, nil, "https://")
	if len(got) != len(source.Products) {
		t.Errorf("completeProductURLs(https://) returned %d URLs, want %d", len(got), len(source.Products))
	}
	if got, _ := completeProductURLs(nil, nil, "./data"); got != nil {
		t.Errorf("completeProductURLs(./data) = %v, want file completion", got)
	}
}

func TestProductListModelFilter(t *testing.T) {
	var model tea.Model = NewProductListModel(source.Products)
	for _, msg := range []tea.Msg{key("/"), key("Precip"), key("enter"), key("enter")} {
		model, _ = model.Update(msg)
	}
	got := model.(ProductListModel)
	if got.Filter != "Precip" {
		t.Errorf("Filter = %q, want Precip", got.Filter)
	}
	if got.Selected == nil || !strings.Contains(strings.ToLower(got.Selected.Name+got.Selected.Description), "precip") {
		t.Errorf("Selected = %v, want a precipitation product", got.Selected)
	}
}

func TestPrintResult(t *testing.T) {
	var buf strings.Builder
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })

	result := &pipeline.Result{
		Outputs: []*pipeline.Output{
			{Files: []string{"refl.png"}},
			{Err: errors.New(errors.ErrCodeInvalidPalette, "no entries")},
		},
		Stats: pipeline.Stats{PayloadBytes: 4096, PayloadCache: true, Failed: 1},
	}
	printResult(result, "refl.txt")

	out := buf.String()
	for _, want := range []string{"refl.png", "refl.txt", "no entries", "4.0 KiB", "2 outputs", "1 failed", "cached"} {
		if !strings.Contains(out, want) {
			t.Errorf("printResult output missing %q:\n%s", want, out)
		}
	}
}
