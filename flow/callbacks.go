package flow

import (
	"fmt"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
)

// BeforeModelCallback runs after the request is assembled and before the
// model is called. Returning a non-nil response skips the model call and
// uses that response instead.
type BeforeModelCallback func(cbCtx *core.CallbackContext, req *model.Request) (*model.Response, error)

// AfterModelCallback runs on every final model response, and with resp nil
// and err set when the model call failed. Returning a non-nil response
// replaces the model's (or recovers the failure).
type AfterModelCallback func(cbCtx *core.CallbackContext, resp *model.Response, err error) (*model.Response, error)

func runBeforeModel(cbCtx *core.CallbackContext, cbs []BeforeModelCallback, req *model.Request) (*model.Response, error) {
	for i, cb := range cbs {
		if cb == nil {
			continue
		}
		resp, err := cb(cbCtx, req)
		if err != nil {
			return nil, fmt.Errorf("before model callback %d: %w", i, err)
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

func runAfterModel(cbCtx *core.CallbackContext, cbs []AfterModelCallback, resp *model.Response, modelErr error) (*model.Response, error) {
	for i, cb := range cbs {
		if cb == nil {
			continue
		}
		replacement, err := cb(cbCtx, resp, modelErr)
		if err != nil {
			return nil, fmt.Errorf("after model callback %d: %w", i, err)
		}
		if replacement != nil {
			return replacement, nil
		}
	}
	return nil, nil
}
