package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *ticket.Config) *Command {
	c := newCommand("print-config", "Show resolved configuration",
		"Display the effective configuration and which files it was loaded from.")

	c.Exec = func(_ context.Context, o *IO, _ []string) error {
		return execPrintConfig(o, cfg)
	}

	return c
}

func execPrintConfig(o *IO, cfg *ticket.Config) error {
	o.Println("effective_cwd=" + cfg.EffectiveCwd)
	o.Println("state_dir=" + cfg.StateDirAbs)
	o.Println("storage=" + cfg.Storage)

	if cfg.Storage == ticket.StorageRedis {
		o.Println("redis_addr=" + cfg.RedisAddr)
	}

	o.Println("cache_ttl=" + cfg.CacheTTL.Std().String())
	o.Println("batch_delay=" + cfg.BatchDelay.Std().String())
	o.Println("dismiss_delay=" + cfg.DismissDelay.Std().String())
	o.Println("page_size=" + strconv.Itoa(cfg.PageSize))
	o.Println("log_level=" + cfg.LogLevel)
	o.Println("log_format=" + cfg.LogFormat)

	if cfg.DataFile != "" {
		o.Println("data_file=" + cfg.DataFile)
	} else {
		o.Println("mock_tickets=" + strconv.Itoa(cfg.MockTickets))
	}

	if len(cfg.FailIDs) > 0 {
		ids := make([]string, len(cfg.FailIDs))
		for i, id := range cfg.FailIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}

		o.Println("fail_ids=" + strings.Join(ids, ","))
	}

	o.Println("export_dir=" + cfg.ExportDirAbs)

	o.Println("")
	o.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		o.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			o.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			o.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
