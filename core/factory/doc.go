// Package factory provides a small generic registry for building pluggable
// modules from configuration. A module is named by a type string and carries
// a map of raw settings; its factory decodes the settings into a typed struct
// and returns the concrete implementation. The metrics sinks are assembled
// this way: the config lists sink modules by type and infra/metrics registers
// a factory per sink.
//
// Example usage:
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	reg.Register("influx", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c struct {
//	        URL string `json:"url"`
//	    }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return metrics.NewInfluxSink(c.URL)
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "influx", Conf: map[string]any{"url": u}})
package factory
