package fsadaptor

import (
	"fmt"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/session"
	"github.com/shusefs/shusefs/pkg/util"
)

// renderSysConfig returns the last Sys.GetConfig response verbatim, or
// an empty body before the first refresh completes.
func (fs *FileSystem) renderSysConfig() ([]byte, time.Time) {
	cfg, updated, valid := fs.session.Cache.SystemConfig()
	if !valid {
		return nil, time.Time{}
	}
	return append([]byte(nil), cfg.Raw...), updated
}

func (fs *FileSystem) renderMQTTConfig() ([]byte, time.Time) {
	cfg, updated, valid := fs.session.Cache.MQTTConfig()
	if !valid {
		return nil, time.Time{}
	}
	return append([]byte(nil), cfg.Raw...), updated
}

func (fs *FileSystem) renderSwitchConfig(id int) ([]byte, time.Time) {
	_, raw, updated, valid := fs.session.Cache.SwitchConfig(id)
	if !valid {
		return nil, time.Time{}
	}
	return append([]byte(nil), raw...), updated
}

func (fs *FileSystem) renderInputConfig(id int) ([]byte, time.Time) {
	_, raw, updated, valid := fs.session.Cache.InputConfig(id)
	if !valid {
		return nil, time.Time{}
	}
	return append([]byte(nil), raw...), updated
}

// renderCrontab renders the cached schedule list as crontab-style
// text (spec.md §6).
func (fs *FileSystem) renderCrontab() ([]byte, time.Time) {
	list, _, updated := fs.session.Cache.Schedules()
	return []byte(session.RenderCrontab(list)), updated
}

// renderScriptFile returns the last fetched source of script id. If no
// fetch has completed yet, it opportunistically starts one (best
// effort, fire-and-forget) and returns what's cached so far, which may
// be empty.
func (fs *FileSystem) renderScriptFile(id int) ([]byte, time.Time) {
	meta, valid := fs.session.Cache.ScriptMeta(id)
	if !valid {
		return nil, time.Time{}
	}
	if len(meta.Code) == 0 {
		if _, err := fs.session.Intents.BeginScriptCodeFetch(id); err != nil {
			util.WithField("script", id).WithError(err).Debug("fsadaptor: requesting script code")
		}
	}
	return append([]byte(nil), meta.Code...), meta.Modified
}

func formatSwitchField(name string, s switchFieldView) string {
	switch name {
	case "output":
		return fmt.Sprintf("%t\n", s.Output)
	case "id":
		return fmt.Sprintf("%d\n", s.ID)
	case "source":
		return s.Source + "\n"
	case "apower":
		return fmt.Sprintf("%.1f\n", s.APower)
	case "voltage":
		return fmt.Sprintf("%.1f\n", s.Voltage)
	case "current":
		return fmt.Sprintf("%.3f\n", s.Current)
	case "freq":
		return fmt.Sprintf("%.1f\n", s.Frequency)
	case "energy":
		return fmt.Sprintf("%.3f\n", s.Energy)
	case "ret_energy":
		return fmt.Sprintf("%.3f\n", s.ReturnedEnergy)
	case "temperature":
		return fmt.Sprintf("%.1f\n", s.TemperatureC)
	default:
		return ""
	}
}

// switchFieldView is the subset of model.SwitchStatus the text
// renderer needs, kept separate so tests can construct it directly
// without building a whole cache.
type switchFieldView struct {
	ID             int
	Source         string
	Output         bool
	APower         float64
	Voltage        float64
	Current        float64
	Frequency      float64
	Energy         float64
	ReturnedEnergy float64
	TemperatureC   float64
}

func (fs *FileSystem) renderSwitchField(id, field int) ([]byte, time.Time) {
	status, mtimes, valid := fs.session.Cache.SwitchStatus(id)
	if !valid {
		return nil, time.Time{}
	}
	view := switchFieldView{
		ID: status.ID, Source: status.Source, Output: status.Output,
		APower: status.APower, Voltage: status.Voltage, Current: status.Current,
		Frequency: status.Frequency, Energy: status.Energy,
		ReturnedEnergy: status.ReturnedEnergy, TemperatureC: status.TemperatureC,
	}
	name := switchFields[field]
	content := []byte(formatSwitchField(name, view))

	var mtime time.Time
	switch name {
	case "output":
		mtime = mtimes.Output
	case "source":
		mtime = mtimes.Source
	case "apower":
		mtime = mtimes.APower
	case "voltage":
		mtime = mtimes.Voltage
	case "current":
		mtime = mtimes.Current
	case "freq":
		mtime = mtimes.Frequency
	case "energy":
		mtime = mtimes.Energy
	case "ret_energy":
		mtime = mtimes.RetEnergy
	case "temperature":
		mtime = mtimes.TempC
	}
	return content, mtime
}

func (fs *FileSystem) renderInputField(id, field int) ([]byte, time.Time) {
	status, mtimes, valid := fs.session.Cache.InputStatus(id)
	if !valid {
		return nil, time.Time{}
	}
	name := inputFields[field]
	switch name {
	case "id":
		return []byte(fmt.Sprintf("%d\n", status.ID)), time.Time{}
	case "state":
		return []byte(fmt.Sprintf("%t\n", status.State)), mtimes.State
	default:
		return nil, time.Time{}
	}
}
