package worker

import "context"

// slotJob remembers a job's submission position
type slotJob struct {
	ctx  context.Context
	slot int
	job  Job
}

func (j *slotJob) Execute(context.Context) Result {
	return &slotResult{slot: j.slot, result: j.job.Execute(j.ctx)}
}

type slotResult struct {
	slot   int
	result Result
}

func (r *slotResult) GetError() error {
	if r.result == nil {
		return nil
	}
	return r.result.GetError()
}

// RunOrdered executes jobs with bounded concurrency and returns their results
// in submission order, whatever order they complete in.
//
// Jobs receive ctx. Once ctx is done no further jobs are submitted; their
// slots are left nil and the count of dispatched jobs is returned. Jobs
// already dispatched run to completion.
func RunOrdered(ctx context.Context, workers int, jobs []Job) (results []Result, dispatched int) {
	results = make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results, 0
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	pool := NewPool(workers)
	pool.Start()

	// Drain concurrently so a full result buffer never stalls submission
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for r := range pool.Results() {
			sr := r.(*slotResult)
			results[sr.slot] = sr.result
		}
	}()

	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if !pool.Submit(&slotJob{ctx: ctx, slot: i, job: job}) {
			break
		}
		dispatched++
	}

	pool.Close()
	<-collected
	return results, dispatched
}
