/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package events

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
)

// defaultDedupeTimeout bounds how often an identical event is re-published
// for the same involved object, so a NodeRequest stuck retrying the same
// failure doesn't flood the event log.
const defaultDedupeTimeout = 2 * time.Minute

// Event is a single thing worth recording against an object, e.g. a
// NodeRequest transitioning phase or a provider call failing.
type Event struct {
	InvolvedObject runtime.Object
	Type           string
	Reason         string
	Message        string

	// DedupeValues, if set, collapses repeat events with the same Reason
	// and DedupeValues within DedupeTimeout into a single emission.
	DedupeValues  []string
	DedupeTimeout time.Duration
}

func (e Event) dedupeKey() string {
	return strings.Join(append([]string{e.Reason}, e.DedupeValues...), "-")
}

// Recorder publishes Events against the underlying Kubernetes event
// recorder, deduplicating repeats.
type Recorder interface {
	Publish(evt Event)
}

type recorder struct {
	rec   record.EventRecorder
	cache *cache.Cache
}

// NewRecorder wraps a client-go EventRecorder with dedupe tracking.
func NewRecorder(r record.EventRecorder) Recorder {
	return &recorder{
		rec:   r,
		cache: cache.New(defaultDedupeTimeout, 1*time.Minute),
	}
}

func (r *recorder) Publish(evt Event) {
	timeout := evt.DedupeTimeout
	if timeout == 0 {
		timeout = defaultDedupeTimeout
	}
	if len(evt.DedupeValues) > 0 && !r.shouldCreateEvent(evt.dedupeKey(), timeout) {
		return
	}
	r.rec.Event(evt.InvolvedObject, evt.Type, evt.Reason, evt.Message)
}

func (r *recorder) shouldCreateEvent(key string, timeout time.Duration) bool {
	if _, exists := r.cache.Get(key); exists {
		return false
	}
	r.cache.Set(key, nil, timeout)
	return true
}
