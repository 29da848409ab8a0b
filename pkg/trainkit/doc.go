/*
Package trainkit wires checkpointing and plateau-driven learning-rate decay
into a training loop.

# Overview

A training run is driven one epoch at a time by a single process. trainkit
provides the glue between that loop and two stateful components:

  - checkpoint.Store persists one bundle per epoch and resolves where an
    interrupted run resumes
  - plateau.Detector watches the loss and lowers the learning rate when it
    stops improving

# Resuming

Start resolves a resume point, loads the bundle and passes device-sensitive
fields through a placement function:

	store, err := trainkit.OpenStore(cfg.Checkpoint)
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	bundle, next, err := trainkit.Start(ctx, store, store.DefaultPolicy(),
	    trainkit.WithPlacement(toDevice),
	)

bundle is nil when no checkpoint was found; next is then 1.

# Training Loop

Loop observes the loss at the end of every epoch, syncs the optimizer on a
plateau and persists on the store's cadence with the detector stored under
DetectorKey:

	det, found, err := trainkit.RestoreDetector(bundle, sched)
	if !found {
	    det, err = trainkit.NewDetector(cfg.Plateau, sched)
	}
	loop := trainkit.NewLoop(store, det, optimizer)
	for epoch := next; epoch <= epochs; epoch++ {
	    loss := train(epoch)
	    if _, err := loop.EndEpoch(ctx, epoch, loss, snapshot); err != nil {
	        return err
	    }
	}

# Persisting Directly

Checkpoint persists caller-supplied values without a Loop:

	err := trainkit.Checkpoint(ctx, store, epoch, trainkit.Values{
	    ModelParameters: params,
	    OptState:        optState,
	}, trainkit.Named("sampler", samplerState))

# Error Handling

Errors wrap the sentinels of the errors package:

	if errors.Is(err, tkerrors.ErrCorruptCheckpoint) {
	    // stored entry is unreadable
	}
*/
package trainkit
