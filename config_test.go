package hwcodec

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := Config{LogLevel: "error", NVENCGPU: -1}
	if *cfg != want {
		t.Errorf("defaults = %+v, want %+v", *cfg, want)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hwcodec.yaml")
	data := "lib_path: /opt/hwcodec/lib\nlog_level: debug\nnvenc_gpu: 1\nprobe_workers: 3\nsoftware_encoders: true\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := Config{
		LibPath:          "/opt/hwcodec/lib",
		LogLevel:         "debug",
		NVENCGPU:         1,
		ProbeWorkers:     3,
		SoftwareEncoders: true,
	}
	if *cfg != want {
		t.Errorf("config = %+v, want %+v", *cfg, want)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hwcodec.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\nprobe_workers: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HWCODEC_LOG_LEVEL", "trace")
	t.Setenv("HWCODEC_PROBE_WORKERS", "8")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "trace" || cfg.ProbeWorkers != 8 {
		t.Errorf("environment did not override the file: %+v", *cfg)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want the default", cfg.LogLevel)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log_level: [debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig accepted malformed YAML")
	}
}

func TestConfig_LoadManifest(t *testing.T) {
	yamlText, err := testManifest().Serialize()
	if err != nil {
		t.Fatal(err)
	}
	binary, err := testManifest().MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		file string
		data []byte
	}{
		{"manifest.yaml", []byte(yamlText)},
		{"manifest.yml", []byte(yamlText)},
		{"caps.bin", binary},
		{"caps.msgpack", binary},
		{"caps", binary},
		{"caps.txt", []byte(yamlText)},
	}

	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			m, err := (&Config{Manifest: path}).LoadManifest()
			if err != nil || !m.Contains(true, DriverAMF, H265) || m.Contains(true, DriverVPL, H264) {
				t.Errorf("LoadManifest = %+v, %v", m, err)
			}
		})
	}

	if m, err := (&Config{}).LoadManifest(); m != nil || err != nil {
		t.Errorf("unconfigured manifest = %+v, %v", m, err)
	}
	if _, err := (&Config{Manifest: filepath.Join(dir, "absent.yaml")}).LoadManifest(); err == nil {
		t.Error("LoadManifest ignored a missing file")
	}
	garbage := filepath.Join(dir, "garbage.bin")
	if err := os.WriteFile(garbage, []byte{0xC1, 0xC1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if m, err := (&Config{Manifest: garbage}).LoadManifest(); m != nil || err != nil {
		t.Errorf("unparseable manifest = %+v, %v, want nil, nil", m, err)
	}
}
