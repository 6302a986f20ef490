// Package capture keeps a log of capture sessions in SQLite.
//
// Every motioncsv run with the session log enabled creates one row in
// capture_sessions when streaming starts and finalises it when streaming
// stops, recording how many frames were written, how many devices the
// stream carried, and how the run ended. The node names seen during the
// run are stored in session_devices.
//
// Recorder is the export.FrameSink that drives this from the stream:
//
//	rec, err := capture.NewRecorder(ctx, capture.NewSQLiteRepository(db.DB), addr, output)
//	if err != nil {
//	    return err
//	}
//	result, err := export.Stream(ctx, client, out, opts, rec)
//	rec.Finish(context.WithoutCancel(ctx), err)
package capture
