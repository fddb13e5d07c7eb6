// Package calendar implements time-zone aware arithmetic over date-keys
// ("YYYY-MM-DD"), the opaque day identifiers used by agendas and views.
//
// Pure key arithmetic (AddDays, AddMonths, WeekRange, MonthGridDays) runs on
// UTC dates and never depends on a zone. Anything that maps a key to an
// instant goes through Zone, which is backed by the Go tz database.
//
// Malformed keys fail with a domain.ValidationError; unknown zones fail with a
// domain.ConfigurationError.
package calendar
