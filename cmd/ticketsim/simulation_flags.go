package main

import (
	"github.com/spf13/pflag"

	"github.com/ticketpool/ticketpool-simulation-go/simulation"
)

// simulationFlags overrides environment settings with the flags given on the command line.
type simulationFlags struct {
	flags *pflag.FlagSet
	cfg   simulation.Config
}

func addSimulationFlags(flags *pflag.FlagSet) *simulationFlags {
	f := &simulationFlags{flags: flags, cfg: simulation.DefaultConfig()}

	flags.IntVar(&f.cfg.TotalTickets, "total-tickets", f.cfg.TotalTickets, "tickets produced over the whole run")
	flags.IntVar(&f.cfg.MaxTicketCapacity, "capacity", f.cfg.MaxTicketCapacity, "tickets the pool holds at once")
	flags.IntVar(&f.cfg.TicketReleaseRate, "release-rate", f.cfg.TicketReleaseRate, "vendor cycle in milliseconds")
	flags.IntVar(&f.cfg.CustomerRetrievalRate, "retrieval-rate", f.cfg.CustomerRetrievalRate, "customer cycle in milliseconds")
	flags.IntVar(&f.cfg.Vendors, "vendors", f.cfg.Vendors, "number of vendor agents")
	flags.IntVar(&f.cfg.Customers, "customers", f.cfg.Customers, "number of customer agents")
	flags.IntVar(&f.cfg.VIPCustomers, "vip-customers", f.cfg.VIPCustomers, "how many of the customers are VIPs")
	flags.IntVar(&f.cfg.ReportInterval, "report-interval", f.cfg.ReportInterval, "statistics report period in milliseconds")

	return f
}

// resolve loads the environment config and applies every flag that was set explicitly.
func (f *simulationFlags) resolve() (simulation.Config, error) {
	cfg, err := simulation.LoadConfigFromEnv()
	if err != nil {
		return simulation.Config{}, err
	}

	overrides := map[string]*int{
		"total-tickets":   &cfg.TotalTickets,
		"capacity":        &cfg.MaxTicketCapacity,
		"release-rate":    &cfg.TicketReleaseRate,
		"retrieval-rate":  &cfg.CustomerRetrievalRate,
		"vendors":         &cfg.Vendors,
		"customers":       &cfg.Customers,
		"vip-customers":   &cfg.VIPCustomers,
		"report-interval": &cfg.ReportInterval,
	}

	for name, target := range overrides {
		if f.flags.Changed(name) {
			value, _ := f.flags.GetInt(name)
			*target = value
		}
	}

	return cfg, cfg.Validate()
}
