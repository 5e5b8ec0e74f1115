// command tmcli is a sample driver for a ThingMagic module: one
// subcommand per sample program in the original Mercury API's samples/
// directory, dispatched against a tmr:// URI.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	tmr "tmreader.dev"
	"tmreader.dev/tagop"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: tmcli <command> <tmr-uri> [flags]\ncommands: version, read, readasync, write, lock, kill, blockwrite, blockpermalock, filter, multiprotocolsearch, savedconfig, loadfirmware")
	}
	cmd, uri, args := os.Args[1], os.Args[2], os.Args[3:]

	rd, err := openURI(uri)
	if err != nil {
		return err
	}
	defer rd.Destroy()
	if err := rd.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	switch cmd {
	case "version":
		return cmdVersion(rd)
	case "read":
		return cmdRead(rd, args)
	case "readasync":
		return cmdReadAsync(rd, args)
	case "write":
		return cmdWrite(rd, args)
	case "lock":
		return cmdLock(rd, args)
	case "kill":
		return cmdKill(rd, args)
	case "blockwrite":
		return cmdBlockWrite(rd, args)
	case "blockpermalock":
		return cmdBlockPermaLock(rd, args)
	case "filter":
		return cmdFilter(rd, args)
	case "multiprotocolsearch":
		return cmdMultiProtocolSearch(rd, args)
	case "savedconfig":
		return cmdSavedConfig(rd, args)
	case "loadfirmware":
		return cmdLoadFirmware(rd, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// openURI opens tmr:///dev/ttyUSB0-style device paths and tmr://sim, the
// in-memory Simulator preloaded with a couple of demo tags.
func openURI(uri string) (*tmr.Reader, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", uri, err)
	}
	if u.Scheme != "tmr" {
		return nil, fmt.Errorf("unsupported URI scheme %q", u.Scheme)
	}
	if u.Host == "sim" {
		sim := tmr.NewSimulator([]tmr.SimTag{
			{EPC: mustHex("E20034120123456700000001"), Antenna: 1, RSSI: -42},
			{EPC: mustHex("E20034120198765400000002"), Antenna: 1, RSSI: -48},
		})
		return tmr.New(sim, 9600), nil
	}
	dev := u.Path
	if dev == "" {
		dev = u.Host
	}
	const baud = 115200
	return tmr.New(tmr.Open(dev, baud), baud), nil
}

func mustHex(s string) []byte {
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func cmdVersion(rd *tmr.Reader) error {
	v := rd.Version()
	fmt.Printf("hardware  % x\n", v.Hardware)
	fmt.Printf("firmware  % x\n", v.Firmware)
	fmt.Printf("bootloader % x\n", v.Bootloader)
	fmt.Printf("protocols 0x%08x\n", v.Protocols)
	return nil
}

func readPlan(fs *flag.FlagSet) (*uint, *uint, *time.Duration) {
	antenna := fs.Uint("antenna", 1, "antenna id")
	weight := fs.Uint("weight", 1, "plan weight")
	timeout := fs.Duration("timeout", 500*time.Millisecond, "read timeout")
	return antenna, weight, timeout
}

func cmdRead(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	antenna, _, timeout := readPlan(fs)
	fs.Parse(args)

	plan := tmr.SimplePlan{
		Antennas: []uint8{uint8(*antenna)},
		Protocol: tmr.ProtocolGen2,
	}
	tags, err := rd.Read(plan, *timeout)
	if err != nil {
		return err
	}
	printTags(tags)
	return nil
}

func cmdReadAsync(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("readasync", flag.ExitOnError)
	antenna, _, _ := readPlan(fs)
	onTime := fs.Duration("on", 250*time.Millisecond, "on time per cycle")
	offTime := fs.Duration("off", 250*time.Millisecond, "off time per cycle")
	fs.Parse(args)

	plan := tmr.SimplePlan{
		Antennas: []uint8{uint8(*antenna)},
		Protocol: tmr.ProtocolGen2,
	}
	if err := rd.AddListener(func(t tmr.TagReadData) {
		fmt.Printf("EPC % x antenna=%d rssi=%d\n", t.EPC, t.Antenna, t.RSSI)
	}); err != nil {
		return err
	}
	if err := rd.StartReading(plan, *onTime, *offTime); err != nil {
		return err
	}
	defer rd.StopReading()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	return nil
}

func printTags(tags []tmr.TagReadData) {
	for _, t := range tags {
		fmt.Printf("EPC % x antenna=%d rssi=%d readCount=%d\n", t.EPC, t.Antenna, t.RSSI, t.ReadCount)
	}
}

func parseBank(s string) (tagop.Bank, error) {
	switch strings.ToLower(s) {
	case "epc":
		return tagop.BankEPC, nil
	case "tid":
		return tagop.BankTID, nil
	case "user":
		return tagop.BankUser, nil
	case "reserved":
		return tagop.BankReserved, nil
	}
	return 0, fmt.Errorf("unknown bank %q", s)
}

func parseWords(s string) ([]uint16, error) {
	if s == "" {
		return nil, nil
	}
	var out []uint16
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseUint(part, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid data word %q: %w", part, err)
		}
		out = append(out, uint16(v))
	}
	return out, nil
}

func cmdWrite(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	bankFlag := fs.String("bank", "user", "gen2 memory bank")
	addr := fs.Uint("addr", 0, "byte address (must be word-aligned)")
	data := fs.String("data", "", "comma-separated hex words, e.g. 1234,5678")
	timeout := fs.Duration("timeout", 500*time.Millisecond, "op timeout")
	fs.Parse(args)

	bank, err := parseBank(*bankFlag)
	if err != nil {
		return err
	}
	words, err := parseWords(*data)
	if err != nil {
		return err
	}
	return rd.WriteGen2Data(bank, uint32(*addr), words, nil, *timeout)
}

func cmdLock(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	mask := fs.Uint("mask", 0, "lock mask")
	action := fs.Uint("action", 0, "lock action")
	timeout := fs.Duration("timeout", 500*time.Millisecond, "op timeout")
	fs.Parse(args)

	_, err := rd.ExecuteTagOp(tagop.Gen2Lock{Mask: uint16(*mask), Action: uint16(*action)}, nil, *timeout)
	return err
}

func cmdKill(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("kill", flag.ExitOnError)
	password := fs.Uint("password", 0, "kill password")
	timeout := fs.Duration("timeout", 500*time.Millisecond, "op timeout")
	fs.Parse(args)

	_, err := rd.ExecuteTagOp(tagop.Gen2Kill{KillPassword: uint32(*password)}, nil, *timeout)
	return err
}

func cmdBlockWrite(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("blockwrite", flag.ExitOnError)
	bankFlag := fs.String("bank", "user", "gen2 memory bank")
	addr := fs.Uint("addr", 0, "word address")
	data := fs.String("data", "", "comma-separated hex words")
	timeout := fs.Duration("timeout", 500*time.Millisecond, "op timeout")
	fs.Parse(args)

	bank, err := parseBank(*bankFlag)
	if err != nil {
		return err
	}
	words, err := parseWords(*data)
	if err != nil {
		return err
	}
	_, err = rd.ExecuteTagOp(tagop.Gen2BlockWrite{Bank: bank, WordPointer: uint32(*addr), Data: words}, nil, *timeout)
	return err
}

func cmdBlockPermaLock(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("blockpermalock", flag.ExitOnError)
	bankFlag := fs.String("bank", "user", "gen2 memory bank")
	block := fs.Uint("block", 0, "block pointer")
	rng := fs.Uint("range", 1, "block range")
	readOnly := fs.Bool("read", true, "read the current lock bitmap instead of writing it")
	timeout := fs.Duration("timeout", 500*time.Millisecond, "op timeout")
	fs.Parse(args)

	bank, err := parseBank(*bankFlag)
	if err != nil {
		return err
	}
	readLock := uint8(0)
	if !*readOnly {
		readLock = 1
	}
	resp, err := rd.ExecuteTagOp(tagop.Gen2BlockPermaLock{
		ReadLock:     readLock,
		Bank:         bank,
		BlockPointer: uint32(*block),
		BlockRange:   uint8(*rng),
	}, nil, *timeout)
	if err != nil {
		return err
	}
	fmt.Printf("lock bitmap: % x\n", resp)
	return nil
}

func cmdFilter(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	prefix := fs.String("epc-prefix", "", "hex EPC prefix to match")
	timeout := fs.Duration("timeout", 500*time.Millisecond, "read timeout")
	fs.Parse(args)

	epc, err := hex.DecodeString(*prefix)
	if err != nil {
		return fmt.Errorf("invalid -epc-prefix: %w", err)
	}
	plan := tmr.SimplePlan{
		Protocol: tmr.ProtocolGen2,
		Filter:   tagop.TagData{EPC: epc},
	}
	tags, err := rd.Read(plan, *timeout)
	if err != nil {
		return err
	}
	printTags(tags)
	return nil
}

func cmdMultiProtocolSearch(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("multiprotocolsearch", flag.ExitOnError)
	timeout := fs.Duration("timeout", 500*time.Millisecond, "read timeout")
	fs.Parse(args)

	plan := tmr.MultiPlan{
		Plans: []tmr.ReadPlan{
			tmr.SimplePlan{Protocol: tmr.ProtocolGen2},
			tmr.SimplePlan{Protocol: tmr.ProtocolISO180006B},
		},
	}
	tags, err := rd.Read(plan, *timeout)
	if err != nil {
		return err
	}
	printTags(tags)
	return nil
}

func cmdSavedConfig(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("savedconfig", flag.ExitOnError)
	action := fs.String("action", "save", "save, restore, verify or clear")
	out := fs.String("out", "", "file to write the host-side cache to, on restore")
	timeout := fs.Duration("timeout", 2*time.Second, "op timeout")
	fs.Parse(args)

	switch *action {
	case "save":
		return rd.SaveProfile(*timeout)
	case "verify":
		return rd.VerifyProfile(*timeout)
	case "clear":
		return rd.ClearProfile(*timeout)
	case "restore":
		f := os.Stdout
		if *out != "" {
			var err error
			f, err = os.Create(*out)
			if err != nil {
				return err
			}
			defer f.Close()
		}
		return rd.RestoreProfile(f, *timeout)
	default:
		return fmt.Errorf("unknown -action %q", *action)
	}
}

func cmdLoadFirmware(rd *tmr.Reader, args []string) error {
	fs := flag.NewFlagSet("loadfirmware", flag.ExitOnError)
	path := fs.String("image", "", "firmware image path")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-image is required")
	}
	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()
	return rd.LoadFirmware(f)
}
