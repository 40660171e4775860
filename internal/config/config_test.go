package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// genNonEmptyString generates non-empty strings for configuration fields.
func genNonEmptyString() gopter.Gen {
	return gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0
	})
}

// genConfiguration generates a structurally valid Configuration with unique
// library names.
func genConfiguration() gopter.Gen {
	return gopter.CombineGens(
		gen.SliceOfN(3, genNonEmptyString()),
		genNonEmptyString(),
		gen.OneConstOf("follow", "skip", "error"),
		gen.IntRange(1, 120),
	).Map(func(vals []interface{}) *Configuration {
		words := vals[0].([]string)
		libs := make([]Library, 0, len(words))
		for i, w := range words {
			libs = append(libs, Library{
				Name:   w + "_" + string(rune('a'+i)),
				Source: filepath.Join("downloads", w),
				Target: filepath.Join("media", w),
			})
		}
		return &Configuration{
			TrackingDirectory:      vals[1].(string),
			PassthroughDirectories: []string{"Featurettes"},
			SymlinkPolicy:          vals[2].(string),
			Libraries:              libs,
			Watch:                  &WatchConfig{DebounceSeconds: vals[3].(int)},
		}
	})
}

func TestConfigurationRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	for _, ext := range []string{".json", ".yaml", ".toml"} {
		ext := ext
		properties.Property("Save then Load preserves configuration ("+ext+")", prop.ForAll(
			func(cfg *Configuration) bool {
				dir, err := os.MkdirTemp("", "medialink-config-*")
				if err != nil {
					return false
				}
				defer os.RemoveAll(dir)

				path := filepath.Join(dir, "config"+ext)
				if err := Save(cfg, path); err != nil {
					t.Logf("save: %v", err)
					return false
				}
				loaded, err := Load(path)
				if err != nil {
					t.Logf("load: %v", err)
					return false
				}
				return reflect.DeepEqual(cfg, loaded)
			},
			genConfiguration(),
		))
	}

	properties.TestingRun(t)
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "config.json", `{
  "trackingDirectory": "state",
  "libraries": [
    {"name": "shows", "source": "downloads/shows", "target": "media/shows"}
  ],
  "watch": {"debounceSeconds": 2, "ignorePatterns": ["*.part"]}
}`},
		{"yaml", "config.yml", `trackingDirectory: state
libraries:
  - name: shows
    source: downloads/shows
    target: media/shows
watch:
  debounceSeconds: 2
  ignorePatterns: ["*.part"]
`},
		{"toml", "config.toml", `trackingDirectory = "state"

[[libraries]]
name = "shows"
source = "downloads/shows"
target = "media/shows"

[watch]
debounceSeconds = 2
ignorePatterns = ["*.part"]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			cfg, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, "state", cfg.TrackingDirectory)
			require.Len(t, cfg.Libraries, 1)
			assert.Equal(t, Library{Name: "shows", Source: "downloads/shows", Target: "media/shows"}, cfg.Libraries[0])
			assert.Equal(t, 2, cfg.Watch.DebounceSeconds)
			assert.Equal(t, []string{"*.part"}, cfg.Watch.IgnorePatterns)

			// Defaults for omitted fields.
			assert.Equal(t, "follow", cfg.SymlinkPolicy)
			assert.Equal(t, []string{"Featurettes"}, cfg.PassthroughDirectories)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, FileNotFound, cfgErr.Type)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("libraries: [unclosed"), 0644))
	_, err = Load(bad)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, InvalidFormat, cfgErr.Type)
	assert.Equal(t, bad, cfgErr.Path)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"libraries": []}`), 0644))
	_, err = Load(empty)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ValidationError, cfgErr.Type)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Configuration
		wantErr bool
	}{
		{"valid", Configuration{Libraries: []Library{{Name: "a", Source: "s", Target: "t"}}}, false},
		{"no libraries", Configuration{}, true},
		{"empty name", Configuration{Libraries: []Library{{Name: " ", Source: "s", Target: "t"}}}, true},
		{"duplicate name", Configuration{Libraries: []Library{
			{Name: "a", Source: "s1", Target: "t1"},
			{Name: "a", Source: "s2", Target: "t2"},
		}}, true},
		{"empty source", Configuration{Libraries: []Library{{Name: "a", Target: "t"}}}, true},
		{"empty target", Configuration{Libraries: []Library{{Name: "a", Source: "s"}}}, true},
		{"bad policy", Configuration{SymlinkPolicy: "maybe", Libraries: []Library{{Name: "a", Source: "s", Target: "t"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				var cfgErr *ConfigError
				require.True(t, errors.As(err, &cfgErr), "got %v", err)
				assert.Equal(t, ValidationError, cfgErr.Type)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Libraries, 2)
	assert.Equal(t, "movies", cfg.Libraries[0].Name)
	assert.Equal(t, filepath.Join("downloads", "movies"), cfg.Libraries[0].Source)
	assert.Equal(t, filepath.Join("media", "movies"), cfg.Libraries[0].Target)
	assert.Equal(t, "shows", cfg.Libraries[1].Name)

	assert.Equal(t, filepath.Join("hardlinks", "hardlinked_movies.json"), cfg.TrackingFileFor(cfg.Libraries[0]))
	assert.Equal(t, filepath.Join("hardlinks", "hardlinked_shows.json"), cfg.TrackingFileFor(cfg.Libraries[1]))
}

func TestTrackingFileFor(t *testing.T) {
	cfg := &Configuration{TrackingDirectory: "/var/lib/medialink"}
	assert.Equal(t, filepath.Join("/var/lib/medialink", "hardlinked_anime.json"), cfg.TrackingFileFor(Library{Name: "anime"}))
	assert.Equal(t, "/custom.json", cfg.TrackingFileFor(Library{Name: "anime", TrackingFile: "/custom.json"}))

	bare := &Configuration{}
	assert.Equal(t, filepath.Join("hardlinks", "hardlinked_x.json"), bare.TrackingFileFor(Library{Name: "x"}))
}

func TestSelectLibraries(t *testing.T) {
	cfg := DefaultConfiguration()

	all, err := cfg.SelectLibraries(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := cfg.SelectLibraries([]string{"shows"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "shows", one[0].Name)

	_, err = cfg.SelectLibraries([]string{"music"})
	assert.Error(t, err)
}

func TestLoadOrCreate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrCreate(filepath.Join(dir, "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfiguration(), cfg)

	path := filepath.Join(dir, "nested", "config.toml")
	custom := &Configuration{Libraries: []Library{{Name: "x", Source: "a", Target: "b"}}}
	require.NoError(t, Save(custom, path))

	loaded, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, "x", loaded.Libraries[0].Name)
	assert.Equal(t, DefaultTrackingDirectory, loaded.TrackingDirectory)
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	assert.Equal(t, filepath.Join(home, "medialink", "config.json"), DefaultPath())
}
