package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gwuah/steerd/control"
	"github.com/gwuah/steerd/sklookup"
	"github.com/gwuah/steerd/sockdiag"
	"github.com/gwuah/steerd/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and check the host can steer connections.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := ReadConf(confPath)
		if err != nil {
			return err
		}
		fmt.Printf("configuration %s is valid:\n%s\n", confPath, conf)

		ports := control.DesiredPorts(conf.Apps)

		if conf.Mode == types.SkLookup {
			if err := checkKernel(); err != nil {
				return err
			}
		}

		// Steered ports shadow whoever else listens on them.
		listeners, err := sockdiag.Listeners(ports)
		if err != nil {
			slog.Warn("couldn't inspect the host's listeners", "err", err)
			return nil
		}
		for _, l := range listeners {
			fmt.Printf("warning: steering port %d will shadow the listener %s\n", l.Port, l)
		}

		return nil
	},
}

func checkKernel() error {
	r, err := sklookup.Preflight()
	if err != nil {
		return fmt.Errorf("error inspecting the kernel: %w", err)
	}

	fmt.Printf("kernel %s: ", r.Release)
	if !r.RecentEnough() {
		fmt.Printf("too old, sk_lookup needs %d.%d or newer\n", sklookup.MIN_KERNEL_MAJOR, sklookup.MIN_KERNEL_MINOR)
		return fmt.Errorf("unsupported kernel %s", r.Release)
	}

	if !r.KConfigFound {
		fmt.Printf("recent enough, couldn't find its kconfig to check further\n")
		return nil
	}

	if len(r.Missing) != 0 {
		fmt.Printf("missing %v\n", r.Missing)
		return fmt.Errorf("the kernel lacks %v", r.Missing)
	}

	fmt.Printf("supported\n")
	return nil
}
