// Package motion implements a client for the Motion Service data streams.
//
// The service streams motion-capture data over TCP. Every message, in either
// direction, is a 4-byte big-endian length followed by that many payload bytes.
// Payloads that start with "<?xml" are XML strings (service descriptions and
// node lists); everything else is a binary data frame.
//
// # Configurable service
//
// The Configurable service (default port 32076) streams only the channels a
// client asks for. The client sends an XML request such as:
//
//	<?xml version="1.0"?><configurable inactive="1"><Lq/><c/></configurable>
//
// and the service replies with a node list naming every device, followed by
// one binary frame per sample. Each frame is a sequence of elements:
//
//	key   uint32 little-endian   device key, matches node list key="N"
//	count uint32 little-endian   number of channels
//	value float32 little-endian  repeated count times
//
// # Usage
//
//	client, err := motion.Connect(ctx, motion.Config{Address: "127.0.0.1:32076"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.WriteData(ctx, motion.DefaultRequest().Bytes()); err != nil {
//	    return err
//	}
//	data, err := client.ReadData(ctx)
//	frame, err := motion.ParseConfigurable(data)
//
// # Thread Safety
//
// A Client is meant to be driven by one goroutine. Close, Stats and
// IsConnected may be called from any goroutine.
package motion
