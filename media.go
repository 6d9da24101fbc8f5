// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package fileconv

import (
	"context"
	"fmt"
)

// gifFilter scales to 480px wide at 10fps and builds a per-clip palette.
const gifFilter = "scale=480:-1:flags=lanczos,fps=10,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"

// audioCodecArgs returns the encoder arguments for an audio target.
func audioCodecArgs(target Format) []string {
	switch target {
	case FormatMP3:
		return []string{"-codec:a", "libmp3lame", "-b:a", "192k"}
	case FormatWAV:
		return []string{"-codec:a", "pcm_s16le"}
	case FormatAAC, FormatM4A:
		return []string{"-codec:a", "aac", "-b:a", "128k"}
	case FormatFLAC:
		return []string{"-codec:a", "flac"}
	case FormatOGG:
		return []string{"-codec:a", "libvorbis", "-b:a", "192k"}
	case FormatWMA:
		return []string{"-codec:a", "wmav2", "-b:a", "128k"}
	}
	return nil
}

// videoCodecArgs returns the encoder arguments for a video container target.
func videoCodecArgs(target Format) []string {
	switch target {
	case FormatMP4:
		return []string{"-codec:v", "libx264", "-codec:a", "aac", "-preset", "medium"}
	case FormatAVI:
		return []string{"-codec:v", "libx264", "-codec:a", "libmp3lame"}
	case FormatMOV, FormatMKV, FormatM4V:
		return []string{"-codec:v", "libx264", "-codec:a", "aac"}
	case FormatWMV:
		return []string{"-codec:v", "wmv2", "-codec:a", "wmav2"}
	case FormatFLV:
		return []string{"-codec:v", "flv", "-codec:a", "libmp3lame"}
	case FormatWEBM:
		return []string{"-codec:v", "libvpx", "-codec:a", "libvorbis"}
	case Format3GP:
		return []string{"-codec:v", "h263", "-codec:a", "aac", "-s", "176x144"}
	}
	return nil
}

// transcodeArgs builds the full ffmpeg argument list for one conversion.
func transcodeArgs(src, dst Category, target Format, in, out string) ([]string, error) {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", in}
	switch {
	case target == FormatGIF && src == CategoryVideo:
		args = append(args, "-an", "-vf", gifFilter)
	case dst == CategoryAudio:
		codec := audioCodecArgs(target)
		if codec == nil {
			return nil, fmt.Errorf("no audio encoder for %s", target)
		}
		if src == CategoryVideo {
			args = append(args, "-vn")
		}
		args = append(args, codec...)
	case dst == CategoryVideo && src == CategoryVideo:
		codec := videoCodecArgs(target)
		if codec == nil {
			return nil, fmt.Errorf("no video encoder for %s", target)
		}
		args = append(args, codec...)
	default:
		return nil, fmt.Errorf("cannot transcode %s to %s", src, target)
	}
	return append(args, out), nil
}

// transcode is the system-transcoder strategy body.
func transcode(ctx context.Context, r *Registry, t *Task) error {
	src, _ := r.CategoryOf(t.Source)
	dst, _ := r.CategoryOf(t.Target)
	args, err := transcodeArgs(src, dst, t.Target, t.InputPath, t.OutputPath)
	if err != nil {
		return err
	}
	return runTool(ctx, t.Runner, t.Caps.Binary(EngineTranscoder), args, t.Timeout)
}
