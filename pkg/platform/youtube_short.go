package platform

import "github.com/sko/reframe/pkg/types"

type YouTubeShort struct{}

func init() {
	Register(&YouTubeShort{})
}

func (p *YouTubeShort) GetName() string {
	return "youtube-short"
}

func (p *YouTubeShort) GetTargetSpec() types.TargetSpec {
	return types.TargetSpec{Width: 1080, Height: 1920}
}

func (p *YouTubeShort) GetMaxDuration() int {
	return 60
}

func (p *YouTubeShort) GetVideoBitrate() string {
	return "4M"
}

func (p *YouTubeShort) GetOutputFormat() string {
	return "mp4"
}
