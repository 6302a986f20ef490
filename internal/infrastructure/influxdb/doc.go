// Package influxdb stores motioncsv capture frames in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with a ping on
// connect and batched, non-blocking writes.
//
// # Data Layout
//
// Each frame produces one point per device:
//
//	motion_channels,device=Hips,key=1 Lqw=1,Lqx=0,Lqy=0,Lqz=0,cw=1,cx=0,cy=0,cz=0 <frame time>
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceChannels("Hips", 1, channels, time.Now())
//
// # Error Handling
//
// Writes are non-blocking. Batch errors are delivered to the SetOnError
// callback as they happen and summarised by Close as ErrWritesFailed.
package influxdb
