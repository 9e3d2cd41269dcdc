/*
 * Copyright 2022 RapidLoop, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hyperterse

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadController watches a config file for changes and, after a quiet
// window with no further changes, reparses and atomically swaps the
// Gateway's model, connector manager and executor. Unlike the reference
// implementation's "too soon since last reload" check (which can swallow
// a change that arrives inside the debounce window and never reload it),
// this resets a timer on every event so a burst of writes collapses into
// exactly one reload, fired debounce after the last event (see DESIGN.md).
type reloadController struct {
	gw       *Gateway
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

func newReloadController(gw *Gateway, path string, debounce time.Duration) (*reloadController, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	return &reloadController{
		gw:       gw,
		path:     filepath.Clean(path),
		debounce: debounce,
		watcher:  watcher,
		done:     make(chan struct{}),
	}, nil
}

func (r *reloadController) start() {
	go r.run()
}

func (r *reloadController) stop() {
	close(r.done)
	r.watcher.Close()
}

func (r *reloadController) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(r.debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-r.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			resetTimer()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.gw.logger.Warn().Err(err).Msg("config watcher error")

		case <-timerC:
			timerC = nil
			r.reload()
		}
	}
}

func (r *reloadController) reload() {
	r.gw.logger.Info().Str("path", r.path).Msg("configuration file changed, reloading")

	model, err := ParseFile(r.path, true)
	if err != nil {
		r.gw.logger.Warn().Err(err).Msg("failed to parse configuration, keeping previous configuration")
		return
	}
	if err := model.IsValid(); err != nil {
		r.gw.logger.Warn().Err(err).Msg("invalid configuration, keeping previous configuration")
		return
	}

	if r.gw.rti != nil && r.gw.rti.PortOverride != 0 {
		model = model.ApplyPortOverride(r.gw.rti.PortOverride)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mgr := newConnectorManager()
	if err := mgr.initialize(ctx, model.Adapters, poolConfigOf(model)); err != nil {
		r.gw.logger.Warn().Err(err).Msg("failed to connect adapters for reloaded configuration, keeping previous configuration")
		return
	}

	old := r.gw.connectors.Load()

	r.gw.model.Store(model)
	r.gw.connectors.Store(mgr)
	r.gw.executor.Store(newQueryExecutor(model, mgr))

	if old != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := old.closeAll(closeCtx); err != nil {
			r.gw.logger.Warn().Err(err).Msg("error closing previous connectors after reload")
		}
		closeCancel()
	}

	r.gw.logger.Info().Msg("configuration reloaded successfully")
}
