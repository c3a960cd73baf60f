package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/shirou/gopsutil/v4/net"

	"github.com/ftahirops/perfdiag/model"
)

func TestClassifyDMI(t *testing.T) {
	tests := []struct {
		vendor, product, want string
	}{
		{"Amazon EC2", "m5.large", "VM (AWS)"},
		{"QEMU", "Standard PC (Q35 + ICH9, 2009)", "VM (KVM)"},
		{"VMware, Inc.", "VMware Virtual Platform", "VM (VMware)"},
		{"Microsoft Corporation", "Virtual Machine", "VM (Hyper-V)"},
		{"Dell Inc.", "PowerEdge R740", ""},
	}
	for _, tt := range tests {
		if got := classifyDMI(tt.vendor, tt.product); got != tt.want {
			t.Errorf("classifyDMI(%q, %q) = %q, want %q", tt.vendor, tt.product, got, tt.want)
		}
	}
}

func TestIsVirtualInterface(t *testing.T) {
	for name, want := range map[string]bool{"eth0": false, "ens5": false, "docker0": true, "veth12ab": true, "cali9": true} {
		if got := isVirtualInterface(name); got != want {
			t.Errorf("isVirtualInterface(%q) = %v", name, got)
		}
	}
}

func TestHostIPs(t *testing.T) {
	addrs := func(a ...string) net.InterfaceAddrList {
		var out net.InterfaceAddrList
		for _, s := range a {
			out = append(out, net.InterfaceAddr{Addr: s})
		}
		return out
	}
	ifaces := net.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback", "running"}, Addrs: addrs("127.0.0.1/8", "::1/128")},
		{Name: "eth0", Flags: []string{"up", "broadcast", "running"}, Addrs: addrs("10.0.1.5/24", "fe80::1/64")},
		{Name: "docker0", Flags: []string{"up", "broadcast"}, Addrs: addrs("172.17.0.1/16")},
		{Name: "eth1", Flags: []string{"broadcast"}, Addrs: addrs("10.0.2.5/24")},
		{Name: "ens5", Flags: []string{"up"}, Addrs: addrs("bogus", "192.168.1.9/24", "2001:db8::5/64", "192.168.1.10/24")},
	}
	got := hostIPs(ifaces)
	want := []string{"10.0.1.5", "192.168.1.9", "2001:db8::5"}
	if len(got) != len(want) {
		t.Fatalf("hostIPs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("hostIPs[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

type fakeIdentity struct {
	doc imds.InstanceIdentityDocument
	err error
	// block waits for the context to end before failing.
	block bool
}

func (f *fakeIdentity) GetInstanceIdentityDocument(ctx context.Context, _ *imds.GetInstanceIdentityDocumentInput, _ ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &imds.GetInstanceIdentityDocumentOutput{InstanceIdentityDocument: f.doc}, nil
}

func TestIMDSProber(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		p := &IMDSProber{timeout: time.Second, client: &fakeIdentity{doc: imds.InstanceIdentityDocument{
			InstanceID: "i-0abc", InstanceType: "m5.large", Region: "us-east-1", AvailabilityZone: "us-east-1a",
		}}}
		got := p.Probe(context.Background())
		if !got.Ok() || got.Value.InstanceID != "i-0abc" || got.Value.Provider != "aws" {
			t.Errorf("Probe = %+v", got)
		}
	})
	t.Run("timeout is unavailable", func(t *testing.T) {
		p := &IMDSProber{timeout: 10 * time.Millisecond, client: &fakeIdentity{block: true}}
		got := p.Probe(context.Background())
		if got.Status != model.OutcomeUnavailable {
			t.Errorf("Status = %v, want unavailable", got.Status)
		}
	})
	t.Run("other failure is an error", func(t *testing.T) {
		p := &IMDSProber{timeout: time.Second, client: &fakeIdentity{err: errors.New("malformed document")}}
		got := p.Probe(context.Background())
		if got.Status != model.OutcomeError || got.Detail != "malformed document" {
			t.Errorf("Probe = %+v", got)
		}
	})
}

type staticProber struct{ out model.Outcome[model.CloudIdentity] }

func (s staticProber) Probe(context.Context) model.Outcome[model.CloudIdentity] { return s.out }

func TestSysInfoCollectorCloudOutcome(t *testing.T) {
	c := &SysInfoCollector{Cloud: staticProber{out: model.Unavailable[model.CloudIdentity]("not reachable")}}
	res, err := c.Collect(context.Background(), Env{})
	if err != nil {
		t.Fatal(err)
	}
	id, ok := res.Details.(model.SystemIdentity)
	if !ok {
		t.Fatalf("Details = %T", res.Details)
	}
	if id.Cloud.Status != model.OutcomeUnavailable || id.Virtualization == "" {
		t.Errorf("identity = %+v", id)
	}
}
