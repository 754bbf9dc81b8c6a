package simulation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultTotalTickets          = 100
	defaultMaxTicketCapacity     = 500
	defaultTicketReleaseRate     = 1000
	defaultCustomerRetrievalRate = 2000
	defaultVendors               = 3
	defaultCustomers             = 5
	defaultVIPCustomers          = 1
	defaultReportInterval        = 1000

	// maxIntervalMS is the largest millisecond value that converts to a positive time.Duration.
	maxIntervalMS = math.MaxInt64 / int64(time.Millisecond)
)

var (
	// ErrInvalidConfig is returned, joined with the concrete violations, when a Config cannot be used.
	ErrInvalidConfig = errors.New("invalid simulation config")

	// ErrNonPositiveTotalTickets is a Config violation.
	ErrNonPositiveTotalTickets = errors.New("totalTickets must be positive")

	// ErrNonPositiveMaxTicketCapacity is a Config violation.
	ErrNonPositiveMaxTicketCapacity = errors.New("maxTicketCapacity must be positive")

	// ErrNonPositiveTicketReleaseRate is a Config violation.
	ErrNonPositiveTicketReleaseRate = errors.New("ticketReleaseRate must be positive")

	// ErrNonPositiveCustomerRetrievalRate is a Config violation.
	ErrNonPositiveCustomerRetrievalRate = errors.New("customerRetrievalRate must be positive")

	// ErrNonPositiveVendors is a Config violation.
	ErrNonPositiveVendors = errors.New("vendors must be positive")

	// ErrNonPositiveCustomers is a Config violation.
	ErrNonPositiveCustomers = errors.New("customers must be positive")

	// ErrInvalidVIPCustomers is a Config violation.
	ErrInvalidVIPCustomers = errors.New("vipCustomers must be between 0 and customers")

	// ErrNonPositiveReportInterval is a Config violation.
	ErrNonPositiveReportInterval = errors.New("reportInterval must be positive")

	// ErrIntervalTooLarge is a Config violation for a millisecond value that does not fit a time.Duration.
	ErrIntervalTooLarge = errors.New("interval exceeds the largest representable duration")
)

// Config describes one simulation run. Rates and intervals are milliseconds.
type Config struct {
	TotalTickets          int `env:"TICKETSIM_TOTAL_TICKETS"              envDefault:"100"  json:"totalTickets"`
	MaxTicketCapacity     int `env:"TICKETSIM_MAX_TICKET_CAPACITY"        envDefault:"500"  json:"maxTicketCapacity"`
	TicketReleaseRate     int `env:"TICKETSIM_TICKET_RELEASE_RATE_MS"     envDefault:"1000" json:"ticketReleaseRate"`
	CustomerRetrievalRate int `env:"TICKETSIM_CUSTOMER_RETRIEVAL_RATE_MS" envDefault:"2000" json:"customerRetrievalRate"`
	Vendors               int `env:"TICKETSIM_VENDORS"                    envDefault:"3"    json:"vendors"`
	Customers             int `env:"TICKETSIM_CUSTOMERS"                  envDefault:"5"    json:"customers"`
	VIPCustomers          int `env:"TICKETSIM_VIP_CUSTOMERS"              envDefault:"1"    json:"vipCustomers"`
	ReportInterval        int `env:"TICKETSIM_REPORT_INTERVAL_MS"         envDefault:"1000" json:"reportInterval"`
}

// DefaultConfig returns the configuration used when nothing else is supplied.
func DefaultConfig() Config {
	return Config{
		TotalTickets:          defaultTotalTickets,
		MaxTicketCapacity:     defaultMaxTicketCapacity,
		TicketReleaseRate:     defaultTicketReleaseRate,
		CustomerRetrievalRate: defaultCustomerRetrievalRate,
		Vendors:               defaultVendors,
		Customers:             defaultCustomers,
		VIPCustomers:          defaultVIPCustomers,
		ReportInterval:        defaultReportInterval,
	}
}

// LoadConfigFromEnv reads a Config from the process environment.
// Unset variables fall back to DefaultConfig values, non-numeric values are rejected.
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}

	return cfg, nil
}

// LoadConfigFromEnvironment reads a Config from the given variables instead of the process environment.
func LoadConfigFromEnvironment(environment map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environment})
	if err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate reports every violated constraint at once, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var violations []error

	if c.TotalTickets <= 0 {
		violations = append(violations, ErrNonPositiveTotalTickets)
	}

	if c.MaxTicketCapacity <= 0 {
		violations = append(violations, ErrNonPositiveMaxTicketCapacity)
	}

	if c.TicketReleaseRate <= 0 {
		violations = append(violations, ErrNonPositiveTicketReleaseRate)
	}

	if c.CustomerRetrievalRate <= 0 {
		violations = append(violations, ErrNonPositiveCustomerRetrievalRate)
	}

	if c.Vendors <= 0 {
		violations = append(violations, ErrNonPositiveVendors)
	}

	if c.Customers <= 0 {
		violations = append(violations, ErrNonPositiveCustomers)
	}

	if c.VIPCustomers < 0 || c.VIPCustomers > c.Customers {
		violations = append(violations, ErrInvalidVIPCustomers)
	}

	if c.ReportInterval <= 0 {
		violations = append(violations, ErrNonPositiveReportInterval)
	}

	intervals := []struct {
		name string
		ms   int
	}{
		{name: "ticketReleaseRate", ms: c.TicketReleaseRate},
		{name: "customerRetrievalRate", ms: c.CustomerRetrievalRate},
		{name: "reportInterval", ms: c.ReportInterval},
	}

	for _, interval := range intervals {
		if int64(interval.ms) > maxIntervalMS {
			violations = append(violations, fmt.Errorf("%w: %s=%d", ErrIntervalTooLarge, interval.name, interval.ms))
		}
	}

	if len(violations) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(violations...))
}

// VendorInterval is the time between two AddTicket calls of one vendor.
func (c Config) VendorInterval() time.Duration {
	return time.Duration(c.TicketReleaseRate) * time.Millisecond
}

// CustomerInterval is the time between two RemoveTicket calls of one customer.
func (c Config) CustomerInterval() time.Duration {
	return time.Duration(c.CustomerRetrievalRate) * time.Millisecond
}

// ReportEvery is the time between two statistics reports of a running simulation.
func (c Config) ReportEvery() time.Duration {
	return time.Duration(c.ReportInterval) * time.Millisecond
}
