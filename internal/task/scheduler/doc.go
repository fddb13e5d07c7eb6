// Package scheduler turns cron and interval specs into engine tasks. It only
// triggers; execution, retries and overlap gating belong to the engine.
package scheduler
