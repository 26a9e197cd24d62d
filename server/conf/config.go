package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

var ConfigPath string

type CommandLineArgs struct {
	ConfigPath string
}

/**
[pgbuf]
page_buffer_size          = 4096
page_size                 = 16384
num_lru_lists             = 0
buffer_flush_ratio        = 0.25
checkpoint_interval       = 3s
debug_page_validation_level = 1
*/
type Cfg struct {
	Raw *ini.File

	AppName string

	// PageBufferSize is the number of BCB slots the pool allocates
	// (spec.md §6 `init`).
	PageBufferSize int `default:"4096" yaml:"page_buffer_size" json:"page_buffer_size,omitempty"`

	// PageSize is the fixed page size every BCB's frame is sized to, in
	// bytes.
	PageSize int `default:"16384" yaml:"page_size" json:"page_size,omitempty"`

	// NumLRULists is the number of independent two-zone LRU lists; 0
	// leaves the buffer pool's default of 8 in place. The count is not
	// derived from PageBufferSize.
	NumLRULists int `default:"0" yaml:"num_lru_lists" json:"num_lru_lists,omitempty"`

	// BufferFlushRatio is the fraction of one LRU list's capacity each
	// periodic background flush sweep scans from the list's bottom.
	BufferFlushRatio float64 `default:"0.25" yaml:"buffer_flush_ratio" json:"buffer_flush_ratio,omitempty"`

	// CheckpointInterval is both the background flusher's sweep period
	// and the fairness-wait poll interval.
	CheckpointInterval         string `default:"3s" yaml:"checkpoint_interval" json:"checkpoint_interval,omitempty"`
	CheckpointIntervalDuration time.Duration

	// DebugPageValidationLevel gates check_page_type's strictness
	// (spec.md §4.8); 0 disables the check entirely.
	DebugPageValidationLevel int `default:"1" yaml:"debug_page_validation_level" json:"debug_page_validation_level,omitempty"`
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:                        ini.Empty(),
		AppName:                    "rye-pgbuf",
		PageBufferSize:             4096,
		PageSize:                   16384,
		NumLRULists:                0,
		BufferFlushRatio:           0.25,
		CheckpointInterval:         "3s",
		CheckpointIntervalDuration: 3 * time.Second,
		DebugPageValidationLevel:   1,
	}
}

// Load reads args.ConfigPath (an .ini file) and overlays it onto the
// struct's defaults. A missing file is not an error — NewCfg's defaults
// stand as-is, the way a freshly checked-out pool is expected to run
// with sane defaults before an operator ever writes a config file.
func (cfg *Cfg) Load(args *CommandLineArgs) *Cfg {
	setHomePath(args)

	if args.ConfigPath == "" {
		return cfg
	}
	if _, err := os.Stat(args.ConfigPath); os.IsNotExist(err) {
		fmt.Println("rye-pgbuf: no config file at", args.ConfigPath, "- using defaults")
		return cfg
	}

	parsed, err := ini.Load(args.ConfigPath)
	if err != nil {
		fmt.Println("rye-pgbuf: failed to parse config file:", err)
		os.Exit(1)
	}
	cfg.Raw = parsed
	cfg.parsePgbufCfg(parsed.Section("pgbuf"))
	return cfg
}

func setHomePath(args *CommandLineArgs) {
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}
	ConfigPath, _ = filepath.Abs(".")
}

func (cfg *Cfg) parsePgbufCfg(section *ini.Section) {
	cfg.PageBufferSize = section.Key("page_buffer_size").MustInt(cfg.PageBufferSize)
	cfg.PageSize = section.Key("page_size").MustInt(cfg.PageSize)
	cfg.NumLRULists = section.Key("num_lru_lists").MustInt(cfg.NumLRULists)
	cfg.BufferFlushRatio = section.Key("buffer_flush_ratio").MustFloat64(cfg.BufferFlushRatio)
	cfg.DebugPageValidationLevel = section.Key("debug_page_validation_level").MustInt(cfg.DebugPageValidationLevel)

	cfg.CheckpointInterval = section.Key("checkpoint_interval").MustString(cfg.CheckpointInterval)
	d, err := time.ParseDuration(cfg.CheckpointInterval)
	if err != nil {
		fmt.Println(fmt.Sprintf("rye-pgbuf: time.ParseDuration(checkpoint_interval=%#v) = error{%v}, keeping previous value", cfg.CheckpointInterval, err))
		return
	}
	cfg.CheckpointIntervalDuration = d
}
