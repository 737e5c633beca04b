// Package comproxy shares one serial (COM) port across a process boundary.
//
// A serial port can be owned by one process only. The proxy Server owns the
// physical port and serves exactly one client connection at a time over a
// unix domain socket. The Client talks to it with a newline-terminated ASCII
// protocol:
//
//	CONNECT          -> OK                 open the serial port
//	DISCONNECT                             close the port and end the session
//	STOP_SERVER                            close the port and stop the server
//	WRITE <base64>   -> OK                 write bytes to the port
//	READLINE         -> <text>             read one line from the port
//	CHECK            -> TRUE | FALSE       is the port open
//	COMPORT          -> <port name>
//
// Any failure on the server side is answered with "ERROR <text>".
//
// Server states:
//
//	Idle -> AwaitClient -> Serving -> Idle ...
//	                 \          \
//	                  +----------+--> Stopped   (STOP_SERVER or Stop)
//
// When a request cannot be sent or its reply cannot be read, the client closes
// its connection, asks its Spawner to (re)start the server, reconnects and
// retries the request exactly once. A second failure is returned as a
// controller.Error of kind KindIPC.
//
// Two spawners exist: InProcessSpawner runs the server in a goroutine of the
// calling process, ProcessSpawner starts the comproxy binary through
// internal/process.
package comproxy
