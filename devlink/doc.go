// Package devlink connects an application to one embedded device over a serial port or
// a BLE link and exchanges lines of the name:tag(body) protocol implemented by package wire.
//
// A Device describes the link, a Manager runs it:
//
//	dev, err := devlink.NewDevice(devlink.SerialTransport, "/dev/ttyUSB0", devlink.WithBaudRate(115200))
//	if err != nil {
//	    return err
//	}
//
//	mgr, err := devlink.NewManager(dev)
//	if err != nil {
//	    return err
//	}
//
//	_ = mgr.RegisterField("temp", func(v wire.Value) {
//	    if t, ok := v.Float(); ok {
//	        fmt.Println("temperature", t)
//	    }
//	})
//	_ = mgr.RegisterGroup([]string{"x", "y"}, func(values []wire.Value) {
//	    fmt.Println("position", values[0], values[1])
//	})
//
//	if err := mgr.Start(); err != nil {
//	    return err
//	}
//	mgr.Send("led:n(1)")
//
//	err = <-mgr.Failures()
//
// Start is optimistic: the manager reports Connected before the link is opened, and an
// open failure surfaces later on Failures like any error of the worker. A line that fails
// to decode ends the connection unless WithSkipMalformedLines is set.
//
// Consumers and event handlers run on the worker goroutine. Applications with a UI
// thread pass WithExecutor to have them posted to it instead.
package devlink
