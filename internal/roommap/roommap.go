// Package roommap loads the static sensor-id-to-room-id lookup table
// used to enrich analytics alerts with a human-meaningful room id.
package roommap

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/sensorgateway/gateway/internal/logger"
)

// DefaultFileName is the room map file name used when none is
// configured (MAP_FILE_NAME).
const DefaultFileName = "room_sensor.map"

// Map is an immutable sensor id -> room id lookup, safe for concurrent
// reads from any number of goroutines once Load returns.
type Map struct {
	rooms map[uint16]int32
}

// Load reads and parses the room map file at path. Line grammar
// (whitespace-tolerant): "<room_id:int> , <sensor_id:int>" where
// sensor_id is in [0, 65535]. Blank lines and lines whose first
// non-whitespace character is '#' are ignored. A malformed line is
// skipped with a warning; the rest of the file is still parsed.
//
// If the file cannot be opened, Load logs a warning and returns an
// empty, valid Map: analytics still runs, but alerts report sensor id
// instead of room id.
func Load(path string, log *slog.Logger) *Map {
	if log == nil {
		log = logger.With()
	}
	m := &Map{rooms: make(map[uint16]int32)}

	f, err := os.Open(path)
	if err != nil {
		log.Warn("room map file unavailable, continuing without it",
			logger.Operation("roommap.load"), logger.Err(err))
		return m
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		roomID, sensorID, perr := parseLine(line)
		if perr != nil {
			log.Warn("skipping malformed room map line",
				logger.Operation("roommap.load"),
				slog.Int("line", lineNo), logger.Err(perr))
			continue
		}
		m.rooms[sensorID] = roomID
	}
	if err := scanner.Err(); err != nil {
		log.Warn("error reading room map file", logger.Operation("roommap.load"), logger.Err(err))
	}
	return m
}

// parseLine parses a single "<room_id>,<sensor_id>" line.
func parseLine(line string) (roomID int32, sensorID uint16, err error) {
	parts := strings.SplitN(line, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("roommap: expected \"room_id,sensor_id\", got %q", line)
	}

	roomStr := strings.TrimSpace(parts[0])
	sensorStr := strings.TrimSpace(parts[1])

	room, err := strconv.ParseInt(roomStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("roommap: invalid room_id %q: %w", roomStr, err)
	}

	sensor, err := strconv.ParseUint(sensorStr, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("roommap: invalid sensor_id %q: %w", sensorStr, err)
	}

	return int32(room), uint16(sensor), nil
}

// Lookup returns the room id for a sensor id, and whether one was
// found. At most one room is associated with a given sensor id.
func (m *Map) Lookup(sensorID uint16) (int32, bool) {
	if m == nil {
		return 0, false
	}
	roomID, ok := m.rooms[sensorID]
	return roomID, ok
}

// Len reports the number of sensor-to-room mappings loaded.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rooms)
}
