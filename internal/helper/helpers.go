package helper

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/trustbond/api/internal/errHandler"
)

type HelperRepository struct {
	baseUrl    *string
	WG         *sync.WaitGroup
	errHandler *errHandler.ErrorHandler
}

func New(baseUrl *string, wg *sync.WaitGroup, errHandler *errHandler.ErrorHandler) *HelperRepository {
	return &HelperRepository{
		baseUrl:    baseUrl,
		WG:         wg,
		errHandler: errHandler,
	}
}

func (h *HelperRepository) NewEmailData() map[string]any {
	data := map[string]any{
		"BaseURL": *h.baseUrl,
	}

	return data
}

// BackgroundTask runs fn outside the request. The server waits on WG during
// shutdown so in-flight mails and activity logs are not cut off.
func (h *HelperRepository) BackgroundTask(r *http.Request, fn func() error) {
	h.WG.Add(1)

	go func() {
		defer h.WG.Done()

		defer func() {
			err := recover()
			if err != nil {
				h.report(r, fmt.Errorf("%s", err))
			}
		}()

		err := fn()
		if err != nil {
			h.report(r, err)
		}
	}()
}

func (h *HelperRepository) report(r *http.Request, err error) {
	if h.errHandler == nil {
		log.Printf("Background task error: %v", err)
		return
	}
	h.errHandler.ReportServerError(r, err)
}
