package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"llamactld/pkg/types"
)

// client is a thin wrapper over the daemon's management API.
type client struct {
	baseURL string
	httpc   *http.Client
}

func (c *client) http() *http.Client {
	if c.httpc == nil {
		c.httpc = &http.Client{Timeout: 5 * time.Minute}
	}
	return c.httpc
}

func (c *client) get(path string, out any) error {
	resp, err := c.http().Get(strings.TrimRight(c.baseURL, "/") + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *client) post(path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := c.http().Post(strings.TrimRight(c.baseURL, "/")+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr types.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *client) status(w io.Writer) error {
	var st types.StatusResponse
	if err := c.get("/api/status", &st); err != nil {
		return err
	}
	if len(st.Instances) == 0 {
		fmt.Fprintln(w, "no instances")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GPU\tMODEL\tSTATE\tPORT\tPID\tRESTARTS\tUPTIME")
	for _, in := range st.Instances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			in.GPU, in.ModelID, in.State, in.Port, in.PID, in.RestartCount,
			(time.Duration(in.UptimeSeconds) * time.Second).String())
	}
	return tw.Flush()
}

func (c *client) gpus(w io.Writer) error {
	var st types.GPUStatusResponse
	if err := c.get("/api/gpus", &st); err != nil {
		return err
	}
	if st.Degraded {
		fmt.Fprintln(w, "warning: probe degraded, showing cpu fallback")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GPU\tNAME\tSTATE\tMODEL\tMEM (MiB)")
	for _, g := range st.GPUs {
		idx := fmt.Sprint(g.Index)
		if g.Index < 0 {
			idx = "cpu"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n",
			idx, g.Name, g.State, g.ModelName, g.MemoryUsedMiB, g.MemoryTotalMiB)
	}
	return tw.Flush()
}

func (c *client) models(w io.Writer) error {
	var resp types.ModelsResponse
	if err := c.get("/api/models", &resp); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPATH")
	for _, m := range resp.Models {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Name, m.Path)
	}
	return tw.Flush()
}

func (c *client) load(w io.Writer, model, gpu string) error {
	var resp types.InstanceResponse
	if err := c.post("/api/models/load", types.LoadRequest{Model: model, GPU: gpu}, &resp); err != nil {
		return err
	}
	fmt.Fprintf(w, "loaded %s on gpu %s (port %d, pid %d)\n",
		resp.Instance.ModelID, resp.Instance.GPU, resp.Instance.Port, resp.Instance.PID)
	return nil
}

func (c *client) unload(w io.Writer, gpu string) error {
	if err := c.post("/api/models/unload", types.UnloadRequest{GPU: gpu}, nil); err != nil {
		return err
	}
	fmt.Fprintf(w, "unloaded gpu %s\n", gpu)
	return nil
}

func (c *client) switchModel(w io.Writer, model, gpu string) error {
	var resp types.InstanceResponse
	if err := c.post("/api/models/switch", types.SwitchRequest{Model: model, GPU: gpu}, &resp); err != nil {
		return err
	}
	fmt.Fprintf(w, "switched gpu %s to %s (port %d, pid %d)\n",
		resp.Instance.GPU, resp.Instance.ModelID, resp.Instance.Port, resp.Instance.PID)
	return nil
}

func (c *client) logs(w io.Writer, gpu string, lines int) error {
	var resp types.LogsResponse
	if err := c.get(fmt.Sprintf("/api/instances/%s/logs?lines=%d", gpu, lines), &resp); err != nil {
		return err
	}
	for _, line := range resp.Lines {
		fmt.Fprintln(w, line)
	}
	return nil
}
