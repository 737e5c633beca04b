// Package process supervises helper processes the feedback daemon depends on.
//
// The main user is the COM-port proxy: a serial port that must not be held
// by the daemon itself is opened by a separate comproxy process, which this
// package starts, watches and stops.
//
// Features:
//   - Start/stop with SIGTERM, then SIGKILL after a grace period
//   - Optional restart with exponential backoff
//   - Health check watchdog that kills a hung child
//   - Line-based capture of stdout/stderr into the logger
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:   "comproxy /dev/ttyUSB0",
//	    Binary: "/usr/local/bin/comproxy",
//	    Args:   []string{"-port", "/dev/ttyUSB0"},
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
