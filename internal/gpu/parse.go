package gpu

import (
	"regexp"
	"strconv"
	"strings"
)

// nvidia-smi is parsed from its human-readable table because the driver
// ships it everywhere and the query-format flags differ across versions.
// The device section lists each GPU on a header line followed by a memory
// line; the Processes section lists per-process memory holdings.
var (
	deviceLineRe  = regexp.MustCompile(`^\|\s+(\d+)\s+(\S.*?)\s+(?:On|Off|TCC|WDDM|N/A)\s`)
	memoryLineRe  = regexp.MustCompile(`(\d+)MiB\s*/\s*(\d+)MiB`)
	processLineRe = regexp.MustCompile(`^\|\s+(\d+)\s+\S+\s+\S+\s+(\d+)\s+\S+\s+(.+?)\s+(\d+)MiB`)
)

// Parse extracts devices and their external process lists from raw
// nvidia-smi output.
func Parse(out string) []Device {
	deviceSection, processSection := splitSections(out)
	devices := parseDevices(deviceSection)
	if len(devices) == 0 {
		return nil
	}
	byIndex := make(map[int]int, len(devices))
	for i, d := range devices {
		byIndex[d.Index] = i
	}
	for _, p := range parseProcesses(processSection) {
		if i, ok := byIndex[p.Index]; ok {
			devices[i].Processes = append(devices[i].Processes, p)
		}
	}
	return devices
}

func splitSections(out string) (string, string) {
	if i := strings.Index(out, "Processes:"); i >= 0 {
		return out[:i], out[i:]
	}
	return out, ""
}

func parseDevices(section string) []Device {
	var devices []Device
	current := -1
	var name string
	for _, line := range strings.Split(section, "\n") {
		if m := deviceLineRe.FindStringSubmatch(line); m != nil {
			current, _ = strconv.Atoi(m[1])
			name = strings.TrimSpace(m[2])
		}
		if current < 0 {
			continue
		}
		if m := memoryLineRe.FindStringSubmatch(line); m != nil {
			used, _ := strconv.Atoi(m[1])
			total, _ := strconv.Atoi(m[2])
			devices = append(devices, Device{
				Index:          current,
				Name:           name,
				MemoryUsedMiB:  used,
				MemoryTotalMiB: total,
			})
			current = -1
		}
	}
	return devices
}

func parseProcesses(section string) []Process {
	var procs []Process
	for _, line := range strings.Split(section, "\n") {
		m := processLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		pid, _ := strconv.Atoi(m[2])
		used, _ := strconv.Atoi(m[4])
		procs = append(procs, Process{
			Index:   idx,
			PID:     pid,
			Name:    strings.TrimSpace(m[3]),
			UsedMiB: used,
		})
	}
	return procs
}
