package collector

import (
	"context"
	"net/netip"
	"os"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/model"
	"github.com/ftahirops/perfdiag/util"
)

// SysInfoCollector gathers the static identity of the host and, through
// Cloud, the instance identity from the metadata service.
type SysInfoCollector struct {
	Cloud CloudProber
}

func (s *SysInfoCollector) Domain() model.Domain { return model.DomainSystemInfo }

func (s *SysInfoCollector) Collect(ctx context.Context, env Env) (res model.DomainResult, _ error) {
	res = newResult(model.DomainSystemInfo)
	defer finish(&res)
	log := env.logger()

	id := model.SystemIdentity{Virtualization: detectVirtualization(), IPs: collectIPs(ctx)}
	if h, err := host.InfoWithContext(ctx); err == nil {
		id.Hostname = h.Hostname
		id.OS = h.OS
		id.Platform = h.Platform
		id.PlatformVer = h.PlatformVersion
		id.Kernel = h.KernelVersion
		id.UptimeSec = h.Uptime
	} else {
		log.Warn("host info unavailable", zap.String("domain", string(res.Domain)), zap.Error(err))
		id.Hostname, _ = os.Hostname()
		res.AddGap("Host")
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		id.CPUModel = infos[0].ModelName
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		id.LogicalCPUs = n
		res.Snapshot.Set("Logical Processors", model.TotalInstance, float64(n))
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		id.TotalMemory = vm.Total
	}

	if s.Cloud != nil {
		id.Cloud = s.Cloud.Probe(ctx)
		if !id.Cloud.Ok() {
			log.Warn("cloud metadata unavailable",
				zap.String("domain", string(res.Domain)),
				zap.String("status", id.Cloud.Status.String()),
				zap.String("detail", id.Cloud.Detail))
		}
	} else {
		id.Cloud = model.Unavailable[model.CloudIdentity]("metadata lookup disabled")
	}

	res.Details = id
	return res, nil
}

// collectIPs returns up to three non-loopback host addresses, skipping
// container and overlay interfaces.
func collectIPs(ctx context.Context) []string {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return nil
	}
	return hostIPs(ifaces)
}

func hostIPs(ifaces net.InterfaceStatList) []string {
	var ips []string
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		if isVirtualInterface(iface.Name) {
			continue
		}
		for _, addr := range iface.Addrs {
			prefix, err := netip.ParsePrefix(addr.Addr)
			if err != nil {
				continue
			}
			ip := prefix.Addr()
			if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			ips = append(ips, ip.String())
			if len(ips) >= 3 {
				return ips
			}
		}
	}
	return ips
}

func isVirtualInterface(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range []string{"docker", "veth", "br-", "cni", "flannel", "cali", "tunl", "weave"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func detectVirtualization() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "Container (Docker)"
	}
	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return "Container (Podman)"
	}
	cgroup, _ := util.ReadFileString(util.ProcPath("1", "cgroup"))
	if strings.Contains(cgroup, "/lxc/") {
		return "Container (LXC)"
	}
	if strings.Contains(cgroup, "/docker/") || strings.Contains(cgroup, "/docker-") {
		return "Container (Docker)"
	}

	vendor, _ := util.ReadFileString(util.SysPath("class", "dmi", "id", "sys_vendor"))
	product, _ := util.ReadFileString(util.SysPath("class", "dmi", "id", "product_name"))
	if v := classifyDMI(vendor, product); v != "" {
		return v
	}

	cpuinfo, _ := util.ReadFileString(util.ProcPath("cpuinfo"))
	if strings.Contains(cpuinfo, "hypervisor") {
		return "VM (unknown)"
	}
	return "Bare Metal"
}

// classifyDMI maps DMI sys_vendor and product_name to a hypervisor label.
func classifyDMI(vendor, product string) string {
	v := strings.ToLower(vendor)
	p := strings.ToLower(product)
	switch {
	case strings.Contains(v, "vmware"):
		return "VM (VMware)"
	case strings.Contains(v, "qemu") || strings.Contains(p, "kvm"):
		return "VM (KVM)"
	case strings.Contains(v, "xen"):
		return "VM (Xen)"
	case strings.Contains(v, "microsoft") && strings.Contains(p, "virtual"):
		return "VM (Hyper-V)"
	case strings.Contains(v, "innotek") || strings.Contains(p, "virtualbox"):
		return "VM (VirtualBox)"
	case strings.Contains(v, "parallels"):
		return "VM (Parallels)"
	case strings.Contains(v, "amazon") || strings.Contains(p, "hvm"):
		return "VM (AWS)"
	case strings.Contains(v, "google"):
		return "VM (GCE)"
	}
	return ""
}
